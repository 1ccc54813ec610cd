package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("tracing.enabled", true)
	viper.Set("tracing.sampler", "ratio")
	viper.Set("tracing.ratio", 0.25)

	cfg := ConfigFromViper("1.2.3")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "skillsmith", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "ratio", cfg.SamplerType)
	assert.InDelta(t, 0.25, cfg.SamplerRatio, 1e-9)
}

func TestGetSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), getSampler(Config{SamplerType: "always"}).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), getSampler(Config{SamplerType: "never"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), getSampler(Config{}).Description())
	assert.Contains(t, getSampler(Config{SamplerType: "ratio", SamplerRatio: 0.5}).Description(), "ParentBased")
}

func TestWithSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(previous)

	err := WithSpan(context.Background(), "merge", func(context.Context) error {
		return nil
	}, SkillAttr("dashboard"))
	require.NoError(t, err)

	err = WithSpan(context.Background(), "verify", func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "merge", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "verify", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
