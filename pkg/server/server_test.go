package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrmsnap/vrmsnap/pkg/snapshot"
	"github.com/vrmsnap/vrmsnap/pkg/types"
)

type mockBuilder struct {
	snap *types.Snapshot
	err  error
}

func (m *mockBuilder) Build(ctx context.Context) (*types.Snapshot, error) {
	return m.snap, m.err
}

func TestHandleSnapshot(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s := &Server{builder: &mockBuilder{snap: types.NewSnapshot("2026-01-01T00:00:00Z")}}
		ts := httptest.NewServer(s.setupHandler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/snapshot")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var doc map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
		assert.Equal(t, "2026-01-01T00:00:00Z", doc["timestamp_utc"])
		assert.Contains(t, doc, "generación")
		assert.Contains(t, doc, "consumo")
	})

	t.Run("BuildFailure", func(t *testing.T) {
		s := &Server{builder: &mockBuilder{err: errors.New("boom")}}
		ts := httptest.NewServer(s.setupHandler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/snapshot")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("NoInstallationsIs404", func(t *testing.T) {
		s := &Server{builder: &mockBuilder{err: snapshot.ErrNoInstallations}}
		ts := httptest.NewServer(s.setupHandler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/snapshot")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Healthz", func(t *testing.T) {
		s := &Server{builder: &mockBuilder{}}
		ts := httptest.NewServer(s.setupHandler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		s := &Server{builder: &mockBuilder{}}
		ts := httptest.NewServer(s.setupHandler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestEnabled(t *testing.T) {
	assert.False(t, (&Server{}).Enabled())
	assert.True(t, (&Server{listenAddr: ":8080"}).Enabled())
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := &Server{
		builder:    &mockBuilder{snap: types.NewSnapshot("x")},
		listenAddr: "127.0.0.1:0",
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, s.Run(ctx))
}
