package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// Outcome is implemented by response messages that summarize their result
// for the RPC log line (e.g., which group a submission landed in).
type Outcome interface {
	LogAttrs() []any
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// Successful calls carry the response's Outcome attributes. Failures caused
// by the caller are logged at warn level, everything else at error level.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}

			if err != nil {
				code := connect.CodeOf(err)
				msg := err.Error()
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					msg = connectErr.Message()
				}
				attrs = append(attrs, "code", code.String(), "error", msg)
				logger.Log(ctx, levelFor(code), "RPC failed", attrs...)
				return resp, err
			}

			if resp != nil {
				if o, ok := resp.Any().(Outcome); ok {
					attrs = append(attrs, o.LogAttrs()...)
				}
			}
			logger.InfoContext(ctx, "RPC ok", attrs...)
			return resp, err
		}
	}
}

// levelFor separates caller mistakes from server faults.
func levelFor(code connect.Code) slog.Level {
	switch code {
	case connect.CodeInvalidArgument,
		connect.CodeNotFound,
		connect.CodeAlreadyExists,
		connect.CodeFailedPrecondition,
		connect.CodeOutOfRange,
		connect.CodeCanceled,
		connect.CodeDeadlineExceeded:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
