package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/session"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/terminal"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "retrobasic-main")
	if err != nil {
		panic(err)
	}
	if err := configuration.Initialize(filepath.Join(dir, "settings.cfg")); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newServer(t *testing.T, staticDir string) (*session.Manager, *httptest.Server) {
	t.Helper()
	mgr := session.NewManager(session.Limits{MaxSessions: 2, OutputBuffer: 64, InputQueueSize: 4}, nil, nil)
	srv := httptest.NewServer(newMux(mgr, staticDir))
	t.Cleanup(func() {
		srv.Close()
		mgr.CloseAll()
	})
	return mgr, srv
}

func createSession(t *testing.T, srv *httptest.Server) auth.SessionResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/session", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body auth.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	return body
}

func TestSessionRoundTrip(t *testing.T) {
	mgr, srv := newServer(t, "")
	created := createSession(t, srv)
	assert.Equal(t, 1, mgr.Count())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + created.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(terminal.ClientRequest{Type: terminal.RequestInput, Content: `PRINT "SUM";1+2`}))

	var texts []string
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(texts) < 3 {
		var msg shared.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == shared.MessageTypeText {
			texts = append(texts, msg.Content)
		}
	}
	// Begrüßung, Ausgabe, READY
	assert.Equal(t, []string{shared.ReadyPrompt, "SUM3", shared.ReadyPrompt}, texts)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, mgr.Count())
}

func TestLogoutRequiresToken(t *testing.T) {
	_, srv := newServer(t, "")
	resp, err := http.Post(srv.URL+"/api/logout", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>retro</h1>"), 0644))
	_, srv := newServer(t, dir)
	createSession(t, srv)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok 1 sessions\n", string(body))

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "retro")
}

func TestNoStaticDir(t *testing.T) {
	_, srv := newServer(t, "")
	resp, err := http.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
