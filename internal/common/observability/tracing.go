// internal/common/observability/tracing.go
package observability

import (
	"context"

	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLogger writes finished spans to the log at debug level so one run's
// stage timings can be read back by trace id.
type spanLogger struct {
	logger logger.Logger
}

func (p *spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := map[string]interface{}{
		"span":       s.Name(),
		"traceId":    s.SpanContext().TraceID().String(),
		"durationMs": s.EndTime().Sub(s.StartTime()).Milliseconds(),
		"status":     s.Status().Code.String(),
	}
	if desc := s.Status().Description; desc != "" {
		fields["statusDescription"] = desc
	}
	p.logger.Debug("span finished", fields)
}

func (p *spanLogger) Shutdown(context.Context) error   { return nil }
func (p *spanLogger) ForceFlush(context.Context) error { return nil }

func newTracerProvider(log logger.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithSpanProcessor(&spanLogger{
			logger: log.WithFields(map[string]interface{}{"component": "tracing"}),
		}),
	)
}
