package redpanda

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderCarrier adapts kgo record headers to an OpenTelemetry TextMapCarrier.
type HeaderCarrier struct {
	Record *kgo.Record
}

var _ propagation.TextMapCarrier = HeaderCarrier{}

// Get returns the value of the first header named key.
func (c HeaderCarrier) Get(key string) string {
	for _, h := range c.Record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set replaces the header named key, or appends it.
func (c HeaderCarrier) Set(key, value string) {
	for i, h := range c.Record.Headers {
		if h.Key == key {
			c.Record.Headers[i].Value = []byte(value)
			return
		}
	}
	c.Record.Headers = append(c.Record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

// Keys lists the header names in record order.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Record.Headers))
	for _, h := range c.Record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTrace writes the trace context of ctx into the record headers.
func InjectTrace(ctx context.Context, record *kgo.Record) {
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier{Record: record})
}

// ExtractTrace returns ctx carrying the remote span context found in the
// record headers, if any.
func ExtractTrace(ctx context.Context, record *kgo.Record) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier{Record: record})
}

// HeaderMap copies the record headers into a map. Later duplicates win.
func HeaderMap(record *kgo.Record) map[string]string {
	m := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		m[h.Key] = string(h.Value)
	}
	return m
}
