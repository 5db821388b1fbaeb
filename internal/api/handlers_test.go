package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-fleet/internal/driver/drivertest"
	"github.com/shehryarbajwa/browserbase-fleet/internal/history"
	"github.com/shehryarbajwa/browserbase-fleet/internal/orchestrator"
	"github.com/shehryarbajwa/browserbase-fleet/internal/proxy"
	"github.com/shehryarbajwa/browserbase-fleet/internal/session"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

type stubHistory struct {
	runs []history.Run
	err  error
	got  int
}

func (s *stubHistory) Recent(ctx context.Context, limit int) ([]history.Run, error) {
	s.got = limit
	return s.runs, s.err
}

func setupRouter(runs RunHistory) (*orchestrator.Orchestrator, *mux.Router) {
	fleet := orchestrator.New(session.NewRunner(drivertest.NewFake()))
	h := NewHandler(fleet, runs)
	return fleet, h.SetupRoutes(proxy.NewServer(fleet))
}

func do(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestGetBatch_Idle(t *testing.T) {
	_, router := setupRouter(nil)

	rec := do(t, router, http.MethodGet, "/v1/batch")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[BatchStatus](t, rec)
	assert.False(t, status.Running)
	assert.Nil(t, status.StartedAt)
	assert.Empty(t, status.InFlight)
}

func TestBatchLifecycle(t *testing.T) {
	fleet, router := setupRouter(nil)

	var batch models.Batch
	batch.Add("https://example.com/a", time.Minute, models.DriverDefault, nil, "")
	batch.Add("https://example.com/b", time.Minute, models.DriverProfileA, nil, "")
	require.NoError(t, fleet.Submit(context.Background(), batch, 2))

	require.Eventually(t, func() bool {
		return len(fleet.InFlight()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	rec := do(t, router, http.MethodGet, "/v1/batch")
	status := decode[BatchStatus](t, rec)
	assert.True(t, status.Running)
	assert.Equal(t, 2, status.Capacity)
	assert.Equal(t, 2, status.Progress.Total)
	require.Len(t, status.InFlight, 2)
	assert.Equal(t, "Bot_1", status.InFlight[0].Name)
	assert.Empty(t, status.InFlight[0].Endpoint)

	rec = do(t, router, http.MethodGet, "/v1/sessions/Bot_2/debug")
	require.Equal(t, http.StatusOK, rec.Code)
	debug := decode[map[string]string](t, rec)
	assert.Equal(t, "ws://example.com/v1/sessions/Bot_2/ws", debug["debuggerUrl"])
	assert.Equal(t, "profile-a", debug["driverKind"])

	rec = do(t, router, http.MethodGet, "/v1/sessions/Bot_9/debug")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/batch/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := fleet.AwaitCompletion(ctx)
	require.NoError(t, err)

	rec = do(t, router, http.MethodGet, "/v1/batch/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[OutcomeList](t, rec)
	require.Len(t, list.Outcomes, 2)
	assert.Equal(t, 2, list.Counts[models.OutcomeCancelled])

	rec = do(t, router, http.MethodPost, "/v1/batch/stop")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetDebugURL_EscapesName(t *testing.T) {
	fleet, router := setupRouter(nil)

	var batch models.Batch
	batch.Add("https://example.com/a", time.Minute, models.DriverDefault, nil, "Bot one?")
	require.NoError(t, fleet.Submit(context.Background(), batch, 1))
	defer func() {
		fleet.RequestStop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fleet.AwaitCompletion(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(fleet.InFlight()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec := do(t, router, http.MethodGet, "/v1/sessions/Bot%20one%3F/debug")
	require.Equal(t, http.StatusOK, rec.Code)
	debug := decode[map[string]string](t, rec)
	assert.Equal(t, "ws://example.com/v1/sessions/Bot%20one%3F/ws", debug["debuggerUrl"])
	assert.Equal(t, "Bot one?", debug["name"])
}

func TestListRuns(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, router := setupRouter(nil)
		assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/v1/runs").Code)
	})

	t.Run("limit", func(t *testing.T) {
		runs := &stubHistory{runs: []history.Run{{ID: "run-1", Capacity: 2}}}
		_, router := setupRouter(runs)

		rec := do(t, router, http.MethodGet, "/v1/runs?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, runs.got)
		got := decode[[]history.Run](t, rec)
		require.Len(t, got, 1)
		assert.Equal(t, "run-1", got[0].ID)
	})

	t.Run("bad limit", func(t *testing.T) {
		_, router := setupRouter(&stubHistory{})
		assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/v1/runs?limit=zero").Code)
	})

	t.Run("store error", func(t *testing.T) {
		_, router := setupRouter(&stubHistory{err: errors.New("disk full")})
		assert.Equal(t, http.StatusInternalServerError, do(t, router, http.MethodGet, "/v1/runs").Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	_, router := setupRouter(nil)

	rec := do(t, router, http.MethodOptions, "/v1/batch/stop")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
