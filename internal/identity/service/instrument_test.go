package service

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRun_RecordsSpansAndMetrics(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	f := newFixture(t,
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)

	f.login(t)
	f.svc.Authenticate(context.Background(), "alice", "wrong")

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("spans = %d, want 2", len(ended))
	}
	for _, s := range ended {
		if s.Name() != "identity.authenticate" {
			t.Errorf("span name = %q", s.Name())
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	var histograms int
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name != "auth.operations" {
					continue
				}
				for _, dp := range data.DataPoints {
					op, _ := dp.Attributes.Value(attribute.Key("auth.operation"))
					out, _ := dp.Attributes.Value(attribute.Key("auth.outcome"))
					counts[op.AsString()+"/"+out.AsString()] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if m.Name == "auth.operation.duration" {
					histograms += len(data.DataPoints)
				}
			}
		}
	}
	if counts["authenticate/ok"] != 1 || counts["authenticate/invalid_credentials"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if histograms != 2 {
		t.Errorf("histogram points = %d, want 2", histograms)
	}
}

func TestRun_InternalErrorMarksSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	f := newFixture(t, WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))))
	f.uow.hooks["Accounts.ListRoles"] = func(context.Context) error { panic("boom") }

	res := f.svc.ListRoles(context.Background())
	if res.Kind != KindInternalError {
		t.Fatalf("Kind = %q", res.Kind)
	}
	ended := spans.Ended()
	if len(ended) != 1 || ended[0].Status().Description != string(KindInternalError) {
		t.Fatalf("span status = %+v", ended)
	}
	if len(ended[0].Events()) == 0 {
		t.Error("span should record the error")
	}
}
