package usage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotaguard/quotaguard/internal/credentials"
	apperrors "github.com/quotaguard/quotaguard/internal/errors"
)

var testCreds = credentials.Credentials{SessionKey: "sk-ant-test", OrgID: "org-123"}

func TestClientFetchSuccess(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"five_hour":{"utilization":87.5,"resets_at":"2025-11-04T04:59:59.943648+00:00"},"seven_day":{"utilization":40,"resets_at":null}}`))
	}))
	defer server.Close()

	client := &Client{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		UserAgent:  UserAgent(ProfileSafari),
	}

	resp, err := client.Fetch(context.Background(), testCreds)
	require.NoError(t, err)

	got := <-reqs
	require.Equal(t, http.MethodGet, got.Method)
	require.Equal(t, "/api/organizations/org-123/usage", got.URL.Path)
	require.Equal(t, "sessionKey=sk-ant-test", got.Header.Get("Cookie"))
	require.Equal(t, "application/json", got.Header.Get("Accept"))
	require.Contains(t, got.Header.Get("User-Agent"), "Safari")

	fetchedAt := time.Date(2025, 11, 4, 4, 0, 0, 0, time.UTC)
	five := resp.FiveHourSnapshot(fetchedAt, "check-1")
	require.Equal(t, WindowFiveHour, five.Window)
	require.Equal(t, 87.5, five.Utilization)
	require.NotNil(t, five.ResetsAt)
	require.Equal(t, 2025, five.ResetsAt.Year())
	require.Equal(t, "check-1", five.CheckID)

	seven, ok := resp.SevenDaySnapshot(fetchedAt, "check-1")
	require.True(t, ok)
	require.Equal(t, float64(40), seven.Utilization)
	require.Nil(t, seven.ResetsAt)
}

func TestClientFetchNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}

	resp, err := client.Fetch(context.Background(), testCreds)
	require.Error(t, err)
	require.Nil(t, resp)
	require.Equal(t, apperrors.CodeExternalService, apperrors.Code(err))
}

func TestClientFetchUnauthorized(t *testing.T) {
	for status, code := range map[int]string{
		http.StatusUnauthorized: apperrors.CodeUnauthorized,
		http.StatusForbidden:    apperrors.CodeForbidden,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
		_, err := client.Fetch(context.Background(), testCreds)
		server.Close()

		require.Error(t, err)
		require.Equal(t, code, apperrors.Code(err))
	}
}

func TestClientFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>challenge</html>`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.Fetch(context.Background(), testCreds)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeDataProcessing, apperrors.Code(err))
}

func TestClientFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client(), Timeout: 50 * time.Millisecond}
	_, err := client.Fetch(context.Background(), testCreds)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeTimeout, apperrors.Code(err))
}

func TestClientFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := &Client{BaseURL: url, Timeout: time.Second}
	_, err := client.Fetch(context.Background(), testCreds)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeExternalService, apperrors.Code(err))
}

func TestClientEndpointEscapesOrgID(t *testing.T) {
	client := &Client{}
	require.Equal(t, "https://claude.ai/api/organizations/a%2Fb/usage", client.endpoint("a/b"))

	client.BaseURL = "http://localhost:8080/"
	require.Equal(t, "http://localhost:8080/api/organizations/org/usage", client.endpoint("org"))
}

func TestRetryAfterDetails(t *testing.T) {
	header := func(value string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		if value != "" {
			resp.Header.Set("Retry-After", value)
		}
		return resp
	}

	require.Nil(t, retryAfterDetails(nil))
	require.Nil(t, retryAfterDetails(header("")))
	require.Equal(t, map[string]any{"retry_after": "30", "retry_after_seconds": 30}, retryAfterDetails(header("30")))
	require.Equal(t, map[string]any{"retry_after": "soon"}, retryAfterDetails(header("soon")))

	date := time.Now().Add(2 * time.Minute).UTC().Format(http.TimeFormat)
	details := retryAfterDetails(header(date))
	require.Equal(t, date, details["retry_after"])
	require.InDelta(t, 120, details["retry_after_seconds"], 5)
}
