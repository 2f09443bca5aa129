package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/catalog"
	"github.com/scythe504/coral-backend/internal/game"
	"github.com/scythe504/coral-backend/internal/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHistory struct {
	results []internal.GameResult
	err     error
	limit   int
}

func (f *fakeHistory) RecentResults(_ context.Context, limit int) ([]internal.GameResult, error) {
	f.limit = limit
	return f.results, f.err
}

func (f *fakeHistory) Health(context.Context) map[string]string {
	return map[string]string{"status": "up"}
}

type decoded struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, history History) (*Server, *game.Engine) {
	t.Helper()
	engine := game.NewEngine(catalog.MustLoad(), nil)
	hub := websocket.NewHub(engine, zap.NewNop())
	engine.SetNotifier(hub)
	return New(8080, "https://coral.example/", engine.Registry(), hub, history, zap.NewNop()), engine
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var body decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, rec.Code, body.StatusCode)
	if out != nil {
		require.NoError(t, json.Unmarshal(body.Data, out))
	}
}

func TestHealthHandler(t *testing.T) {
	s, engine := newTestServer(t, &fakeHistory{})
	_, err := engine.CreateRoom("host")
	require.NoError(t, err)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var health map[string]any
	decode(t, rec, &health)
	require.Equal(t, "up", health["status"])
	require.EqualValues(t, 1, health["rooms"])
	require.EqualValues(t, 0, health["connections"])
	require.Contains(t, health, "database")
}

func TestPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/history", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRoomHandler(t *testing.T) {
	s, engine := newTestServer(t, nil)
	code, err := engine.CreateRoom("host")
	require.NoError(t, err)

	rec := get(t, s, "/rooms/"+code)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary game.RoomSummary
	decode(t, rec, &summary)
	require.Equal(t, game.RoomSummary{Code: code, Phase: internal.PhaseLobby, PlayerCount: 0, Joinable: true}, summary)

	rec = get(t, s, "/rooms/NOROOM")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomQRHandler(t *testing.T) {
	s, engine := newTestServer(t, nil)
	code, err := engine.CreateRoom("host")
	require.NoError(t, err)
	require.Equal(t, "https://coral.example/join/"+code, s.JoinURL(code))

	rec := get(t, s, "/rooms/"+code+"/qr?size=128")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 128, img.Bounds().Dx())

	require.Equal(t, http.StatusBadRequest, get(t, s, "/rooms/"+code+"/qr?size=5").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/rooms/NOROOM/qr").Code)
}

func TestHistoryHandler(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		s, _ := newTestServer(t, nil)
		require.Equal(t, http.StatusServiceUnavailable, get(t, s, "/history").Code)
	})

	t.Run("limits", func(t *testing.T) {
		h := &fakeHistory{results: []internal.GameResult{{ID: "g1", RoomCode: "ABCDEF", WinningTeam: internal.TeamFriends}}}
		s, _ := newTestServer(t, h)

		rec := get(t, s, "/history")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, defaultHistoryLimit, h.limit)
		var results []internal.GameResult
		decode(t, rec, &results)
		require.Len(t, results, 1)
		require.Equal(t, "g1", results[0].ID)

		get(t, s, "/history?limit=500")
		require.Equal(t, maxHistoryLimit, h.limit)

		require.Equal(t, http.StatusBadRequest, get(t, s, "/history?limit=zero").Code)
	})

	t.Run("query failure", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeHistory{err: errors.New("connection reset")})
		require.Equal(t, http.StatusInternalServerError, get(t, s, "/history").Code)
	})
}
