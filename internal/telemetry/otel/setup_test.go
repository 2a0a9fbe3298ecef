package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"bare host", "collector:4317", "collector:4317", true, false},
		{"http", "http://collector:4317", "collector:4317", true, false},
		{"https", "https://collector.example.com:4317", "collector.example.com:4317", false, false},
		{"path dropped", "http://collector:4317/v1/traces", "collector:4317", true, false},
		{"missing scheme", "://invalid", "", false, true},
		{"malformed", "http://[invalid", "", false, true},
		{"missing host", "http://", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, insecure, err := parseEndpoint(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseEndpoint(%q) expected error", tt.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEndpoint(%q): %v", tt.endpoint, err)
			}
			if target != tt.wantTarget || insecure != tt.wantInsecure {
				t.Errorf("parseEndpoint(%q) = (%q, %v), want (%q, %v)", tt.endpoint, target, insecure, tt.wantTarget, tt.wantInsecure)
			}
		})
	}
}

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "aphinity-test", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) returned nil provider: %+v", endpoint, providers)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), "http://", "aphinity-test", false); err == nil {
		t.Fatal("expected error for endpoint without host")
	}
}

func TestNewProviders_Exporting(t *testing.T) {
	// gRPC exporters dial lazily so no collector is needed.
	ctx := context.Background()
	providers, err := NewProviders(ctx, "http://127.0.0.1:4317", "aphinity-test", true)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "aphinity-test", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	providers.SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("global TracerProvider not set")
	}
}
