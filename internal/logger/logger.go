// Package logger configures the process-wide logrus logger.
//
// Entries logged with WithContext get the OpenTelemetry trace and span ids
// and the request id of the context attached.
package logger

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientIDKey
)

// Setup configures the standard logrus logger: JSON output, the given level
// and the context hook.
func Setup(level string, out io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.AddHook(ContextHook{})
	return nil
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// ContextHook copies tracing and request identifiers from the entry context.
type ContextHook struct{}

func (ContextHook) Levels() []log.Level {
	return log.AllLevels
}

func (ContextHook) Fire(entry *log.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanContextFromContext(ctx)
	if spanContext.HasTraceID() {
		entry.Data["trace_id"] = spanContext.TraceID().String()
	}
	if spanContext.HasSpanID() {
		entry.Data["span_id"] = spanContext.SpanID().String()
	}
	if id := RequestID(ctx); id != "" {
		entry.Data["request_id"] = id
	}
	if id := ClientID(ctx); id != "" {
		entry.Data["client_id"] = id
	}
	return nil
}
