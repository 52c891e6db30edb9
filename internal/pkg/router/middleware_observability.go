package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gomfa/internal/pkg/config"
	"github.com/shandysiswandi/gomfa/internal/pkg/goerror"
	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// bodyLogLimit caps how much of a request or response body reaches the log.
const bodyLogLimit = 16 << 10

// recorder captures what the handler wrote so it can be logged and measured.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
	err    error
}

func (w *recorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if room := bodyLogLimit - w.body.Len(); room > 0 {
		w.body.Write(p[:min(len(p), room)])
	}
	n, err := w.ResponseWriter.Write(p)
	w.size += n
	return n, err
}

// SetError is called by endpoint with the error the handler returned.
func (w *recorder) SetError(err error) { w.err = err }

func (w *recorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *recorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// redactor hides the values of sensitive keys in headers and JSON bodies.
type redactor map[string]struct{}

func newRedactor(cfg config.Config) redactor {
	rd := redactor{}
	if cfg == nil {
		return rd
	}
	for _, field := range cfg.GetArray("instrument.log_mask_fields") {
		rd[strings.ToLower(field)] = struct{}{}
	}
	return rd
}

func (rd redactor) hides(key string) bool {
	_, ok := rd[strings.ToLower(key)]
	return ok
}

func (rd redactor) headers(h http.Header) http.Header {
	out := h.Clone()
	for key := range out {
		if rd.hides(key) || (strings.EqualFold(key, "Set-Cookie") && rd.hides("cookie")) {
			out.Set(key, "***")
		}
	}
	return out
}

func (rd redactor) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if rd.hides(k) {
				out[k] = "***"
				continue
			}
			out[k] = rd.value(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = rd.value(inner)
		}
		return out
	default:
		return v
	}
}

// body renders b for a log line. JSON is redacted, images are summarized.
func (rd redactor) body(contentType string, b []byte) any {
	if len(b) == 0 {
		return nil
	}

	if media, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(media, "image/") {
		return fmt.Sprintf("<%s body>", media)
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err == nil {
		return rd.value(doc)
	}

	if !utf8.Valid(b) {
		return "<binary body>"
	}
	if len(b) >= bodyLogLimit {
		return string(b) + "...(truncated)"
	}
	return string(b)
}

// peekBody reads the head of the request body and puts it back for the handler.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	//nolint:errcheck // best effort for logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, bodyLogLimit))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	return head
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type httpMetrics struct {
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
	rejections metric.Int64Counter
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	if m.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received")); err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	if m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms")); err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}
	if m.rejections, err = meter.Int64Counter("auth.rejections",
		metric.WithDescription("Business rejections by reason")); err != nil {
		slog.Error("failed to create rejection counter", "error", err)
	}

	return m
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	rd := newRedactor(cfg)
	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			start := time.Now()

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
				),
			)
			defer span.End()

			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"headers", rd.headers(r.Header),
				"body", rd.body(r.Header.Get("Content-Type"), peekBody(r)),
			)

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.code()
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			reason := goerror.ReasonOf(rec.err)
			if reason != "" {
				span.SetAttributes(attribute.String("auth.reason", reason))
				if metrics.rejections != nil {
					metrics.rejections.Add(ctx, 1, metric.WithAttributes(
						semconv.HTTPRouteKey.String(route),
						attribute.String("reason", reason),
					))
				}
			}

			switch {
			case status >= http.StatusInternalServerError && rec.err != nil:
				span.RecordError(rec.err)
				span.SetStatus(codes.Error, rec.err.Error())
			case status >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(status))
			default:
				span.SetStatus(codes.Ok, "")
			}

			span.SetAttributes(append(attrs,
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				attribute.Int("http.response_content_length", rec.size),
			)...)
			if metrics.requests != nil {
				metrics.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			elapsed := time.Since(start)
			if metrics.duration != nil {
				metrics.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attrs...))
			}

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"reason", reason,
				"bytes", rec.size,
				"latency_ms", elapsed.Milliseconds(),
				"headers", rd.headers(rec.Header()),
				"body", rd.body(rec.Header().Get("Content-Type"), rec.body.Bytes()),
			)
		})
	}
}
