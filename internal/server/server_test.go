package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladiators/warstats/internal/api/clash"
	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/derive"
	"github.com/gladiators/warstats/internal/repository/memory"
	"github.com/gladiators/warstats/internal/service"
	"github.com/gladiators/warstats/internal/store"
	"github.com/gladiators/warstats/internal/warlog"
)

// newTestServer wires a demo-mode service: no API key, so every request
// is answered from sample data without touching the network.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	boundary, err := warlog.NewBoundary(config.Policy{
		Timezone:        "UTC",
		BoundaryWeekday: 1,
		BoundaryHour:    4,
		BoundaryMinute:  30,
	})
	require.NoError(t, err)

	st := store.New(t.TempDir())
	svc := service.NewWarService(
		clash.NewAPI(clash.NewClient(config.ClashAPI{ClanTag: "TEST"})),
		st,
		warlog.NewMerger(st, boundary, 260),
		derive.NewEngine(derive.Policy{Boundary: boundary, PromotionThreshold: 1600, PromotionStreakWeeks: 3}),
		memory.NewRepository(),
		boundary,
		260,
	)
	require.NoError(t, svc.Refresh())

	return New(svc, config.Server{AllowedOrigin: "*", StaticDir: t.TempDir()})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := get(t, newTestServer(t), "/healthz")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestPreflightShortCircuits(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/clan/members", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMembersEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/clan/members")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Members []struct {
			Tag  string `json:"tag"`
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Members)
	for _, m := range body.Members {
		assert.NotEmpty(t, m.Tag)
		assert.NotEmpty(t, m.Role)
	}
}

func TestWarLogEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/clan/warlog")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		WarLog          []json.RawMessage `json:"warLog"`
		WarLogAvailable bool              `json:"warLogAvailable"`
		LastRefreshed   string            `json:"lastRefreshed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.WarLog)
	assert.True(t, body.WarLogAvailable)
	assert.NotEmpty(t, body.LastRefreshed)
}

func TestWarLogEndpoint_MaxWeeks(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/clan/warlog?maxWeeks=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		WarLog []json.RawMessage `json:"warLog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.WarLog, 2)
}

func TestLeaderboardEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/clan/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Players         []json.RawMessage `json:"players"`
		WeekLabels      []string          `json:"weekLabels"`
		WarLogAvailable bool              `json:"warLogAvailable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Players)
	assert.NotEmpty(t, body.WeekLabels)
	// The display default caps the columns even with deeper history.
	assert.LessOrEqual(t, len(body.WeekLabels), defaultDisplayWeeks)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=5&b=junk&c=-2", nil)
	assert.Equal(t, 5, queryInt(req, "a", 9))
	assert.Equal(t, 9, queryInt(req, "b", 9))
	assert.Equal(t, 9, queryInt(req, "c", 9))
	assert.Equal(t, 9, queryInt(req, "missing", 9))
}
