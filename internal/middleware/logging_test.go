package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"connectrpc.com/connect"
)

type matchedReply struct {
	GroupID string
}

func (r *matchedReply) LogAttrs() []any {
	return []any{"group_id", r.GroupID, "matched", true}
}

func runInterceptor(t *testing.T, next connect.UnaryFunc) string {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRequestID(context.Background(), "req-42")
	handler := LoggingInterceptor(logger)(next)
	_, _ = handler(ctx, connect.NewRequest(&struct{}{}))
	return buf.String()
}

func TestLoggingInterceptorOutcome(t *testing.T) {
	out := runInterceptor(t, func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&matchedReply{GroupID: "g1"}), nil
	})

	for _, want := range []string{"level=INFO", "RPC ok", "request_id=req-42", "group_id=g1", "matched=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log = %q, want %q", out, want)
		}
	}
}

func TestLoggingInterceptorLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  string
	}{
		{
			name:      "caller mistake",
			err:       connect.NewError(connect.CodeInvalidArgument, errors.New("name is required")),
			wantLevel: "level=WARN",
			wantCode:  "code=invalid_argument",
		},
		{
			name:      "server fault",
			err:       connect.NewError(connect.CodeInternal, errors.New("failed to process request")),
			wantLevel: "level=ERROR",
			wantCode:  "code=internal",
		},
		{
			name:      "plain error",
			err:       errors.New("boom"),
			wantLevel: "level=ERROR",
			wantCode:  "code=unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runInterceptor(t, func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
				return nil, tt.err
			})
			for _, want := range []string{tt.wantLevel, tt.wantCode, "RPC failed", "request_id=req-42"} {
				if !strings.Contains(out, want) {
					t.Errorf("log = %q, want %q", out, want)
				}
			}
		})
	}
}
