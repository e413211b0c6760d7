package pairingstub_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatanon/internal/pairingstub"
)

type frame struct {
	Type        string `json:"type"`
	OnlineCount *int   `json:"onlineCount"`
	Count       *int   `json:"count"`
	From        string `json:"from"`
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
	Message     string `json:"message"`
	UserID      string `json:"userId"`
}

func startStub(t *testing.T) (*pairingstub.Hub, *httptest.Server) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := pairingstub.NewHub(log)
	srv := httptest.NewServer(pairingstub.NewServer(hub, log).Handler())
	t.Cleanup(func() {
		hub.DropAll()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func sendUserData(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "user_data",
		"userId":    userID,
		"gender":    "male",
		"interests": []string{"art"},
		"language":  "en-US",
		"timezone":  "UTC",
	}))
}

func pair(t *testing.T, srv *httptest.Server) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	a := dial(t, srv)
	next(t, a, "connected")
	sendUserData(t, a, "user-a")
	next(t, a, "user_data_saved")

	b := dial(t, srv)
	next(t, b, "connected")
	sendUserData(t, b, "user-b")

	next(t, a, "paired")
	next(t, b, "paired")
	return a, b
}

func TestServer_ConnectedCarriesOnlineCount(t *testing.T) {
	req := require.New(t)
	_, srv := startStub(t)

	a := dial(t, srv)
	first := next(t, a, "connected")
	req.NotNil(first.OnlineCount)
	req.Equal(1, *first.OnlineCount)

	b := dial(t, srv)
	second := next(t, b, "connected")
	req.Equal(2, *second.OnlineCount)

	update := next(t, a, "online_count_update")
	req.NotNil(update.Count)
	req.Equal(2, *update.Count)
}

func TestServer_UserDataIsAcknowledged(t *testing.T) {
	req := require.New(t)
	hub, srv := startStub(t)

	a := dial(t, srv)
	next(t, a, "connected")
	sendUserData(t, a, "user-a")

	saved := next(t, a, "user_data_saved")
	req.Equal("user-a", saved.UserID)
	req.Eventually(func() bool { return hub.WaitingCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_PairsAndRelays(t *testing.T) {
	req := require.New(t)
	_, srv := startStub(t)
	a, b := pair(t, srv)

	req.NoError(a.WriteJSON(map[string]string{"type": "chat_message", "content": "  hi there "}))

	echo := next(t, a, "chat_message")
	req.Equal("you", echo.From)
	req.Equal("hi there", echo.Content)
	_, err := time.Parse(time.RFC3339Nano, echo.Timestamp)
	req.NoError(err)

	relayed := next(t, b, "chat_message")
	req.Equal("stranger", relayed.From)
	req.Equal("hi there", relayed.Content)
	req.Equal(echo.Timestamp, relayed.Timestamp)
}

func TestServer_PartnerDisconnected(t *testing.T) {
	req := require.New(t)
	_, srv := startStub(t)
	a, b := pair(t, srv)

	req.NoError(a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Manual disconnect")))

	gone := next(t, b, "partner_disconnected")
	req.Equal(pairingstub.PartnerDisconnectedMessage, gone.Message)
	req.NotNil(gone.OnlineCount)
	req.Equal(1, *gone.OnlineCount)
}

func TestServer_ErrorFrames(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "not json", payload: `{oops`, want: "Invalid message format"},
		{name: "unknown type", payload: `{"type":"typing"}`, want: "Unknown message type"},
		{name: "chat before pairing", payload: `{"type":"chat_message","content":"hi"}`, want: "You are not paired with anyone"},
		{name: "incomplete user data", payload: `{"type":"user_data","userId":"x"}`, want: "User data is incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, srv := startStub(t)
			a := dial(t, srv)
			next(t, a, "connected")

			req.NoError(a.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			got := next(t, a, "error")
			req.Equal(tt.want, got.Message)
		})
	}
}

func TestServer_OnlineEndpoint(t *testing.T) {
	req := require.New(t)
	hub, srv := startStub(t)
	dial(t, srv)
	req.Eventually(func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/users/online")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]int
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal(1, body["count"])
}

func TestHub_DropAllLooksAbnormal(t *testing.T) {
	req := require.New(t)
	hub, srv := startStub(t)
	a := dial(t, srv)
	next(t, a, "connected")

	hub.DropAll()

	req.NoError(a.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := a.ReadMessage()
	req.Error(err)
	req.True(websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure))
	req.Eventually(func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
