package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Conversions.WithLabelValues("ORDER_DISPENSE", "success").Inc()
	m.DecodeFailures.WithLabelValues("unsupported_segment").Add(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
		}
	}
	if values["hl7_conversions_total"] != 1 {
		t.Errorf("expected 1 conversion, got %v", values["hl7_conversions_total"])
	}
	if values["hl7_decode_failures_total"] != 2 {
		t.Errorf("expected 2 decode failures, got %v", values["hl7_decode_failures_total"])
	}
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
