package otel

import (
	"errors"
	"testing"

	authkit "github.com/scriptdeck/authkit"
	"go.opentelemetry.io/otel/metric/noop"
)

type fakeSource struct{}

func (fakeSource) MetricsSnapshot() authkit.MetricsSnapshot {
	return authkit.MetricsSnapshot{
		Counters:   map[authkit.MetricID]uint64{authkit.MetricLoginSuccess: 1},
		Histograms: map[authkit.MetricID][]uint64{},
	}
}

func (fakeSource) AuditDropped() uint64 { return 0 }

func TestNewOTelExporterRejectsNilInputs(t *testing.T) {
	if _, err := NewOTelExporterFromSource(nil, fakeSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(noop.NewMeterProvider().Meter("test"), nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestOTelExporterRegistersAndCloses(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	exporter, err := NewOTelExporterFromSource(meter, fakeSource{})
	if err != nil {
		t.Fatalf("create exporter: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("close exporter: %v", err)
	}
	// Closing twice must be safe.
	if err := exporter.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
