package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"tenderdash/internal/infrastructure"
)

type staticClients int

func (c staticClients) ClientCount() int { return int(c) }

func TestHealthService_Readiness(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, nil)

	tests := []struct {
		name       string
		opts       HealthOptions
		load       bool
		wantStatus string
	}{
		{name: "no dataset service", opts: HealthOptions{}, wantStatus: "not_ready"},
		{name: "dataset not loaded", opts: HealthOptions{Dataset: svc}, wantStatus: "not_ready"},
		{name: "dataset loaded", opts: HealthOptions{Dataset: svc, Clients: staticClients(2)}, load: true, wantStatus: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.load {
				_, err := svc.Load(ctx)
				require.NoError(t, err)
			}
			tt.opts.Version = "1.2.3"
			tt.opts.Logger = discardLogger()
			hs := NewHealthService(tt.opts)

			status := hs.ReadinessCheck(ctx)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Contains(t, status.Services, "dataset")
		})
	}
}

func TestHealthService_WebSocketClients(t *testing.T) {
	hs := NewHealthService(HealthOptions{Clients: staticClients(3), Logger: discardLogger()})
	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "3 clients connected", status.Services["websocket"].Message)
}

func TestHealthService_Liveness(t *testing.T) {
	collector, err := infrastructure.NewRuntimeCollector(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	hs := NewHealthService(HealthOptions{Version: "1.0.0", Runtime: collector, Logger: discardLogger()})
	status := hs.LivenessCheck(context.Background())

	assert.Equal(t, "alive", status.Status)
	require.NotNil(t, status.Runtime)
	assert.Positive(t, status.Runtime.Goroutines)
	assert.NotEmpty(t, status.Runtime.GoVersion)

	bare := NewHealthService(HealthOptions{Logger: discardLogger()})
	assert.Nil(t, bare.LivenessCheck(context.Background()).Runtime)
}

func TestHealthService_Version(t *testing.T) {
	hs := NewHealthService(HealthOptions{Version: "1.0.0", BuildTime: "2024-01-01", Logger: discardLogger()})
	info := hs.Version()

	assert.Equal(t, "1.0.0", info["version"])
	assert.Equal(t, "2024-01-01", info["build_time"])
	assert.Contains(t, info, "go_version")

	assert.NotContains(t, NewHealthService(HealthOptions{Logger: discardLogger()}).Version(), "build_time")
	assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)
}
