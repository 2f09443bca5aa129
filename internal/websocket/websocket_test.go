package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/catalog"
	"github.com/scythe504/coral-backend/internal/game"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub, *game.Engine) {
	t.Helper()
	engine := game.NewEngine(catalog.MustLoad(), nil, game.WithRandom(game.NewRandom(1)))
	hub := NewHub(engine, zap.NewNop())
	engine.SetNotifier(hub)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return srv, hub, engine
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(internal.Message[any]{Type: msgType, Data: data}))
}

// await reads until a message of the given type arrives and decodes its payload into out.
func await(t *testing.T, conn *websocket.Conn, msgType string, out any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", msgType)
		if env.Type != msgType {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
		return
	}
}

func TestCreateAndJoinRoundTrip(t *testing.T) {
	srv, hub, engine := newTestServer(t)

	host := dial(t, srv)
	send(t, host, internal.MsgCreateRoom, nil)
	var created internal.RoomCreatedData
	await(t, host, internal.EvtRoomCreated, &created)
	require.Len(t, created.RoomCode, 6)
	require.NotEmpty(t, created.HostToken)

	player := dial(t, srv)
	send(t, player, internal.MsgJoinRoom, internal.JoinRoomData{
		DisplayName: "Alice",
		RoomCode:    strings.ToLower(created.RoomCode),
	})
	var joined internal.JoinSuccessData
	await(t, player, internal.EvtJoinSuccess, &joined)
	require.Equal(t, created.RoomCode, joined.RoomCode)
	require.Equal(t, "Alice", joined.PlayerName)
	require.False(t, joined.Rejoined)

	var lobby internal.LobbyUpdateData
	await(t, host, internal.EvtLobbyUpdate, &lobby)
	for len(lobby.Players) == 0 {
		await(t, host, internal.EvtLobbyUpdate, &lobby)
	}
	require.Equal(t, "Alice", lobby.Players[0].Name)

	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 10*time.Millisecond)
	sum, err := engine.Registry().Summary(created.RoomCode)
	require.NoError(t, err)
	require.Equal(t, 1, sum.PlayerCount)
}

func TestRejectionsStayInBand(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, internal.MsgJoinRoom, internal.JoinRoomData{DisplayName: "Bob", RoomCode: "ZZZZZZ"})
	var joinErr internal.ErrorData
	await(t, conn, internal.EvtJoinError, &joinErr)
	require.Equal(t, "room_not_found", joinErr.Kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad internal.ErrorData
	await(t, conn, internal.EvtError, &bad)
	require.Equal(t, "illegal_intent", bad.Kind)

	send(t, conn, "dance", nil)
	var unknown internal.ErrorData
	await(t, conn, internal.EvtError, &unknown)
	require.Equal(t, "illegal_intent", unknown.Kind)
	require.Contains(t, unknown.Message, "dance")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"submit_vote","data":"yes"}`))
	var malformed internal.ErrorData
	await(t, conn, internal.EvtError, &malformed)
	require.Equal(t, "illegal_intent", malformed.Kind)

	// The socket is still usable after every rejection
	send(t, conn, internal.MsgCreateRoom, nil)
	await(t, conn, internal.EvtRoomCreated, nil)
}

func TestSocketCloseRemovesLobbyPlayer(t *testing.T) {
	srv, hub, engine := newTestServer(t)

	host := dial(t, srv)
	send(t, host, internal.MsgCreateRoom, nil)
	var created internal.RoomCreatedData
	await(t, host, internal.EvtRoomCreated, &created)

	player := dial(t, srv)
	send(t, player, internal.MsgJoinRoom, internal.JoinRoomData{DisplayName: "Carol", RoomCode: created.RoomCode})
	await(t, player, internal.EvtJoinSuccess, nil)

	require.NoError(t, player.Close())

	require.Eventually(t, func() bool {
		sum, err := engine.Registry().Summary(created.RoomCode)
		return err == nil && sum.PlayerCount == 0
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDecodeTreatsMissingPayloadAsZero(t *testing.T) {
	v, err := decode[internal.SubmitVoteData](nil)
	require.NoError(t, err)
	require.False(t, v.Vote)

	v, err = decode[internal.SubmitVoteData](json.RawMessage(`{"vote":true}`))
	require.NoError(t, err)
	require.True(t, v.Vote)

	_, err = decode[internal.SubmitVoteData](json.RawMessage(`[1,2]`))
	require.ErrorIs(t, err, game.ErrIllegalIntent)
}
