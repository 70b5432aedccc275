package vrm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrmsnap/vrmsnap/pkg/budget"
)

func TestUserID(t *testing.T) {
	t.Run("Resolved", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/users/me", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": 42}})
		}))
		defer ts.Close()

		c := testClient(ts, 2)
		id, err := c.UserID(context.Background(), budget.NewClock(25*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 42, id)
	})

	t.Run("MissingUserIsZeroNotError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))
		defer ts.Close()

		c := testClient(ts, 2)
		id, err := c.UserID(context.Background(), budget.NewClock(25*time.Second))
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestInstallations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/42/installations", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"idSite": 1, "name": "Generación Casa", "timezone": "America/Santiago"},
				{"idSite": 2, "name": "Consumo Casa", "timeZone": "America/Santiago"},
				{"idSite": 3, "name": "Otro", "tz": "UTC"},
				{"idSite": 4, "name": "Sin Zona"},
			},
		})
	}))
	defer ts.Close()

	c := testClient(ts, 2)
	installs, err := c.Installations(context.Background(), budget.NewClock(25*time.Second), 42)
	require.NoError(t, err)
	require.Len(t, installs, 4)

	t.Run("SiteZones", func(t *testing.T) {
		zones := SiteZones(installs)
		assert.Equal(t, map[int]string{
			1: "America/Santiago",
			2: "America/Santiago",
			3: "UTC",
		}, zones, "sites without a zone are left out")
	})

	t.Run("PickSite", func(t *testing.T) {
		// unaccented query matches accented name
		id, ok := PickSite(installs, "Generacion")
		require.True(t, ok)
		assert.Equal(t, 1, id)

		// accented query matches too
		id, ok = PickSite(installs, "generación")
		require.True(t, ok)
		assert.Equal(t, 1, id)

		id, ok = PickSite(installs, "consumo")
		require.True(t, ok)
		assert.Equal(t, 2, id)

		_, ok = PickSite(installs, "bodega")
		assert.False(t, ok)
	})
}

func TestZonePrecedence(t *testing.T) {
	i := Installation{Timezone: "America/Santiago", TimeZone: "Europe/Madrid", TZ: "UTC"}
	assert.Equal(t, "America/Santiago", i.Zone())

	i = Installation{TimeZone: "Europe/Madrid", TZ: "UTC"}
	assert.Equal(t, "Europe/Madrid", i.Zone())

	i = Installation{TZ: "UTC"}
	assert.Equal(t, "UTC", i.Zone())

	assert.Empty(t, Installation{}.Zone())
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "generacion casa", foldName("Generación Casa"))
	assert.Equal(t, "consumo", foldName("CONSUMO"))
	assert.Equal(t, "", foldName(""))
}
