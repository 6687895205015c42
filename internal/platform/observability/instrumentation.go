package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var counters = struct {
	sync.Mutex
	values map[string]float64
}{values: make(map[string]float64)}

// Enabled reports whether span logging has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records a span around an operation. The returned func must be
// called exactly once with the operation's outcome.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	start := time.Now()
	logger, cfg := currentLogger()

	if logger != nil && cfg.Enabled {
		logger.LogAttrs(ctx, slog.LevelDebug, "obs span start",
			slog.String("component", component),
			slog.String("operation", operation),
		)
	}

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		RecordMetric(ctx, component+"."+operation, 1, map[string]string{"outcome": outcome})

		if logger == nil || !cfg.Enabled {
			return
		}
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "obs span end", attrs...)
	}
}

// RecordMetric adds value to the counter identified by name and labels and
// emits a debug datapoint when spans are enabled.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	counters.Lock()
	counters.values[key] += value
	counters.Unlock()

	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}

// Counters returns a copy of every accumulated counter.
func Counters() map[string]float64 {
	counters.Lock()
	defer counters.Unlock()
	out := make(map[string]float64, len(counters.values))
	for k, v := range counters.values {
		out[k] = v
	}
	return out
}

// ResetCounters clears accumulated counters.
func ResetCounters() {
	counters.Lock()
	counters.values = make(map[string]float64)
	counters.Unlock()
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
