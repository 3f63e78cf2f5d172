package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func ptrFloat64(f float64) *float64 {
	return &f
}

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []TracerProviderOption
		expectNoOp bool
	}{
		{name: "no config", expectNoOp: true},
		{
			name:       "tracing disabled",
			opts:       []TracerProviderOption{WithTracingConfig(&TracingConfig{Enabled: false})},
			expectNoOp: true,
		},
		{
			name: "tracing enabled",
			opts: []TracerProviderOption{
				WithTracingConfig(&TracingConfig{Enabled: true, Sampling: ptrFloat64(0.5)}),
				WithTracerEnvironment("test"),
				WithTracerInsecure(true),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, tt.opts...)
			require.NoError(t, err)

			if tt.expectNoOp {
				assert.IsType(t, noop.TracerProvider{}, tp)
				return
			}
			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok, "expected SDK tracer provider")
			require.NoError(t, sdkTP.Shutdown(ctx))
		})
	}
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		environment string
		wantEnv     bool
	}{
		{name: "production", environment: "prod", wantEnv: true},
		{name: "no environment", environment: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := newResource(context.Background(), "kvk-sync", "1.2.3", tt.environment)
			require.NoError(t, err)

			set := res.Set()
			name, _ := set.Value("service.name")
			version, _ := set.Value("service.version")
			namespace, _ := set.Value("service.namespace")
			assert.Equal(t, "kvk-sync", name.AsString())
			assert.Equal(t, "1.2.3", version.AsString())
			assert.Equal(t, ServiceNamespace, namespace.AsString())

			env, ok := set.Value(attribute.Key("deployment.environment"))
			assert.Equal(t, tt.wantEnv, ok)
			if tt.wantEnv {
				assert.Equal(t, tt.environment, env.AsString())
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	t.Parallel()

	assert.Contains(t, newSampler(DefaultSampling).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")

	// Children follow the decision taken for the sync.cycle root span
	sampler := newSampler(0.000001)
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	})
	res := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: trace.ContextWithSpanContext(context.Background(), parent),
		TraceID:       parent.TraceID(),
		Name:          "sync.basisprofiel.keys",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestTracerProviderOptions(t *testing.T) {
	t.Parallel()

	tracingCfg := &TracingConfig{Enabled: true}
	cfg := &tracerProviderConfig{}
	for _, opt := range []TracerProviderOption{
		WithTracerServiceName("kvk-sync-test"),
		WithTracerServiceVersion("2.0.0"),
		WithTracerEnvironment("test"),
		WithTracingConfig(tracingCfg),
		WithTracerEndpoint("collector.example.com:4318"),
		WithTracerInsecure(true),
	} {
		opt(cfg)
	}

	assert.Equal(t, "kvk-sync-test", cfg.serviceName)
	assert.Equal(t, "2.0.0", cfg.serviceVersion)
	assert.Equal(t, "test", cfg.environment)
	assert.Same(t, tracingCfg, cfg.tracingConfig)
	assert.Equal(t, "collector.example.com:4318", cfg.endpoint)
	assert.True(t, cfg.insecure)
}
