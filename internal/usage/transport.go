package usage

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// TLS fingerprint profiles.
const (
	ProfileSafari  = "safari"
	ProfileChrome  = "chrome"
	ProfileFirefox = "firefox"
)

// userAgents pairs each fingerprint with a matching User-Agent header.
var userAgents = map[string]string{
	ProfileSafari:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
	ProfileChrome:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	ProfileFirefox: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:120.0) Gecko/20100101 Firefox/120.0",
}

func helloID(profile string) (utls.ClientHelloID, error) {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", ProfileSafari:
		return utls.HelloSafari_Auto, nil
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("unsupported tls profile: %s", profile)
	}
}

// UserAgent returns the browser User-Agent matching a TLS profile.
func UserAgent(profile string) string {
	if ua, ok := userAgents[strings.ToLower(strings.TrimSpace(profile))]; ok {
		return ua
	}
	return userAgents[ProfileSafari]
}

// http11Spec builds the browser ClientHello with ALPN limited to http/1.1,
// since net/http only speaks HTTP/2 over crypto/tls connections.
func http11Spec(id utls.ClientHelloID) (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}

// TransportOption customizes NewImpersonatingTransport.
type TransportOption func(*transportOptions)

type transportOptions struct {
	rootCAs *x509.CertPool
}

// WithRootCAs verifies server certificates against pool instead of the
// system roots.
func WithRootCAs(pool *x509.CertPool) TransportOption {
	return func(o *transportOptions) {
		o.rootCAs = pool
	}
}

// NewImpersonatingTransport returns a transport whose TLS handshake presents
// the ClientHello of the given browser profile.
func NewImpersonatingTransport(profile string, timeout time.Duration, opts ...TransportOption) (*http.Transport, error) {
	id, err := helloID(profile)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var options transportOptions
	for _, opt := range opts {
		opt(&options)
	}

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	dialTLS := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		spec, err := http11Spec(id)
		if err != nil {
			return nil, err
		}

		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		conn := utls.UClient(raw, &utls.Config{ServerName: host, RootCAs: options.rootCAs}, utls.HelloCustom)
		if err := conn.ApplyPreset(spec); err != nil {
			_ = raw.Close()
			return nil, err
		}
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, err
		}
		return conn, nil
	}

	return &http.Transport{
		DialContext:           dialer.DialContext,
		DialTLSContext:        dialTLS,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          1,
		IdleConnTimeout:       30 * time.Second,
	}, nil
}
