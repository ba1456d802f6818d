package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:              "test",
		Version:          "test",
		StorageDriver:    config.StorageMemory,
		LockDriver:       config.LockLocal,
		NotifyDriver:     config.NotifyLog,
		NotifyWorkers:    1,
		NotifyQueueSize:  8,
		NotifyTimeout:    time.Second,
		SlotDuration:     time.Hour,
		TemplateCacheTTL: time.Minute,
		Location:         time.UTC,
	}
}

func TestBuild_Memory(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Redis)
	assert.Empty(t, a.HealthChecks())
	assert.NotNil(t, a.Booking)

	require.NoError(t, a.RunWorkerCycle(context.Background()))
}

func TestRouter_ServesHealthAndMetrics(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)

	a.Close()
	assert.NotPanics(t, a.Close)
}
