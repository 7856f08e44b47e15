package terminal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/session"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*session.Manager, *httptest.Server) {
	t.Helper()
	mgr := session.NewManager(session.Limits{MaxSessions: 4, OutputBuffer: 64, InputQueueSize: 4}, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(mgr).HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		mgr.CloseAll()
	})
	return mgr, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func connect(t *testing.T, mgr *session.Manager, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	id, err := mgr.CreateSession("")
	require.NoError(t, err)
	token, err := auth.GenerateSessionToken(id, "")
	require.NoError(t, err)
	conn, _, err := dial(t, srv, token)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	readUntil(t, conn, shared.ReadyPrompt)
	return conn, id
}

// readUntil collects text messages up to and including want.
func readUntil(t *testing.T, conn *websocket.Conn, want string) []shared.Message {
	t.Helper()
	var got []shared.Message
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg shared.Message
		require.NoError(t, conn.ReadJSON(&msg), "received so far: %+v", got)
		got = append(got, msg)
		if msg.Type == shared.MessageTypeText && msg.Content == want {
			return got
		}
	}
}

func textsOf(msgs []shared.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Type == shared.MessageTypeText {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestWebSocketRunsCommands(t *testing.T) {
	mgr, srv := newTestServer(t)
	conn, _ := connect(t, mgr, srv)

	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestInput, Content: "10 PRINT \"HI\";2+3"}))
	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestKeepalive}))
	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestInput, Content: "RUN"}))

	msgs := readUntil(t, conn, shared.ReadyPrompt)
	assert.Equal(t, []string{"HI5", "READY."}, textsOf(msgs))
}

func TestWebSocketBreak(t *testing.T) {
	mgr, srv := newTestServer(t)
	conn, id := connect(t, mgr, srv)

	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestInput, Content: "10 GOTO 10"}))
	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestInput, Content: "RUN"}))
	sess, ok := mgr.Get(id)
	require.True(t, ok)
	require.Eventually(t, sess.Busy, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestBreak}))
	msgs := readUntil(t, conn, shared.ReadyPrompt)
	assert.Contains(t, strings.Join(textsOf(msgs), "\n"), "BREAK IN LINE 10")
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	mgr, srv := newTestServer(t)
	conn, _ := connect(t, mgr, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"explode"}`)))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg shared.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == shared.MessageTypeError {
			assert.Contains(t, msg.Content, "unknown request type")
			break
		}
	}
}

func TestWebSocketAuthentication(t *testing.T) {
	mgr, srv := newTestServer(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "garbage")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.GenerateSessionToken("no-such-session", "")
	require.NoError(t, err)
	_, resp, err = dial(t, srv, token)
	require.Error(t, err)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	// a second terminal on the same session is refused
	_, id := connect(t, mgr, srv)
	token, err = auth.GenerateSessionToken(id, "")
	require.NoError(t, err)
	_, resp, err = dial(t, srv, token)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	mgr, srv := newTestServer(t)
	conn, id := connect(t, mgr, srv)
	require.NoError(t, conn.WriteJSON(ClientRequest{Type: RequestInput, Content: "10 PRINT 7"}))

	sess, _ := mgr.Get(id)
	require.Eventually(t, func() bool { return sess.Interpreter().State().ProgramSize == 1 }, 2*time.Second, 5*time.Millisecond)
	conn.Close()

	token, err := auth.GenerateSessionToken(id, "")
	require.NoError(t, err)
	var again *websocket.Conn
	require.Eventually(t, func() bool {
		var dialErr error
		again, _, dialErr = dial(t, srv, token)
		return dialErr == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer again.Close()
	readUntil(t, again, shared.ReadyPrompt)

	require.NoError(t, again.WriteJSON(ClientRequest{Type: RequestInput, Content: "RUN"}))
	assert.Equal(t, []string{"7", "READY."}, textsOf(readUntil(t, again, shared.ReadyPrompt)))
}

func TestInputValidator(t *testing.T) {
	v := &InputValidator{MaxInputLength: 10}

	tests := []struct {
		name string
		data string
		err  error
	}{
		{"input", `{"type":"input","content":"PRINT 1"}`, nil},
		{"tab", `{"type":"input","content":"A\tB"}`, nil},
		{"break", `{"type":"break"}`, nil},
		{"too long", `{"type":"input","content":"PRINT 12345678"}`, ErrInputTooLong},
		{"control", `{"type":"input","content":"A\u0007"}`, ErrControlCharacter},
		{"newline", `{"type":"input","content":"A\nB"}`, ErrControlCharacter},
		{"unknown type", `{"type":"shell"}`, ErrUnknownRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.DecodeRequest([]byte(tt.data))
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	_, err := v.DecodeRequest([]byte(`{"type":"input","extra":1}`))
	assert.Error(t, err, "unknown fields are rejected")
	_, err = v.DecodeRequest([]byte(`not json`))
	assert.Error(t, err)
}
