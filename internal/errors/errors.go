package errors

import (
	"context"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
)

// Error codes used by quotaguard.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeDataProcessing  = "DATA_PROCESSING_ERROR"
	CodeConfigInvalid   = "CONFIG_INVALID"
)

type correlationKey struct{}

// WithCorrelationID returns a context carrying the id that wrapped errors
// are tagged with.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func WrapUnauthorized(ctx context.Context, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	return wrap(ctx, CodeUnauthorized, err, message, details)
}

func WrapForbidden(ctx context.Context, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	return wrap(ctx, CodeForbidden, err, message, details)
}

func WrapExternalService(ctx context.Context, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message, details)
}

func WrapTimeout(ctx context.Context, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	return wrap(ctx, CodeTimeout, err, message, details)
}

func WrapDataProcessing(ctx context.Context, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	return wrap(ctx, CodeDataProcessing, err, message, details)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message, nil)
}

// Code returns the envelope code of err, or "" when err is not an envelope.
func Code(err error) string {
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope.Code
	}
	return ""
}

func wrap(ctx context.Context, code string, err error, message string, details map[string]any) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = withSeverity(envelope, code)

	fields := make(map[string]interface{}, len(details)+1)
	for key, value := range details {
		fields[key] = value
	}
	if err != nil {
		fields["wrapped_error"] = err.Error()
	}
	if len(fields) == 0 {
		return envelope
	}

	updated, updateErr := envelope.WithContext(fields)
	if updateErr != nil {
		return envelope
	}
	return updated
}

// withSeverity marks upstream and data failures high, auth and timeouts medium.
func withSeverity(envelope *errors.ErrorEnvelope, code string) *errors.ErrorEnvelope {
	var (
		updated *errors.ErrorEnvelope
		err     error
	)
	switch code {
	case CodeExternalService, CodeDataProcessing, CodeConfigInvalid:
		updated, err = envelope.WithSeverity(errors.SeverityHigh)
	default:
		updated, err = envelope.WithSeverity(errors.SeverityMedium)
	}
	if err != nil {
		return envelope
	}
	return updated
}

// extractCorrelationID gets the correlation id from context, falling back to
// a fresh UUID.
func extractCorrelationID(ctx context.Context) string {
	if id := CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
