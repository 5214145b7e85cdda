package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftgate/internal/config"
	"nftgate/internal/license"
	"nftgate/internal/oracle"
	"nftgate/internal/shared/testutil"
)

type testServer struct {
	*httptest.Server
	hub    *Hub
	oracle *oracle.Static
}

func newTestServer(t *testing.T, o *oracle.Static, origins ...string) *testServer {
	t.Helper()

	logger, _ := testutil.NewCaptureLogger()
	licenser, err := license.NewLicenser(o, license.WithPreamble("Socket preamble"), license.WithLogger(logger))
	require.NoError(t, err)

	hub := NewHub(logger)
	h := NewHandler(licenser, hub, config.Default().WebSocket, origins, nil, logger)
	srv := httptest.NewServer(h)

	t.Cleanup(func() {
		hub.Shutdown(context.Background())
		srv.Close()
		licenser.Close()
	})
	return &testServer{Server: srv, hub: hub, oracle: o}
}

func (s *testServer) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": msgType}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func receive(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func challenge(t *testing.T, conn *websocket.Conn) license.LicensingRequest {
	t.Helper()
	send(t, conn, TypeRequestVerification, nil)
	msg := receive(t, conn)
	require.Equal(t, TypeLicensingRequest, msg.Type)

	var req license.LicensingRequest
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	return req
}

func TestSession_LicensingRoundTrip(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true))
	conn := srv.dial(t, nil)
	wallet := testutil.NewWallet(t)

	req := challenge(t, conn)
	assert.True(t, strings.HasPrefix(req.Message, "Socket preamble\n"))

	response := license.LicensingResponse{
		RequestID:     req.ID,
		PublicAddress: wallet.LowerHex(),
		AnswerMessage: wallet.SignPersonal(t, req.Message),
	}

	send(t, conn, TypeLicensingResponse, response)
	msg := receive(t, conn)
	assert.Equal(t, TypeLicensingCompleted, msg.Type)
	assert.JSONEq(t, "true", string(msg.Data))

	send(t, conn, TypeLicensingResponse, response)
	msg = receive(t, conn)
	assert.Equal(t, TypeLicensingCompleted, msg.Type)
	assert.JSONEq(t, "false", string(msg.Data), "replayed response")

	assert.Equal(t, []string{wallet.LowerHex()}, srv.oracle.Calls())
}

func TestSession_RejectsMissingData(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true))
	conn := srv.dial(t, nil)

	send(t, conn, TypeLicensingResponse, nil)
	msg := receive(t, conn)

	assert.Equal(t, TypeLicensingCompleted, msg.Type)
	assert.JSONEq(t, "false", string(msg.Data))
	assert.Empty(t, srv.oracle.Calls())
}

func TestSession_OracleFailure(t *testing.T) {
	srv := newTestServer(t, oracle.NewFailing(errors.New("upstream down")))
	conn := srv.dial(t, nil)
	wallet := testutil.NewWallet(t)

	req := challenge(t, conn)
	send(t, conn, TypeLicensingResponse, license.LicensingResponse{
		RequestID:     req.ID,
		PublicAddress: wallet.Hex(),
		AnswerMessage: wallet.SignPersonal(t, req.Message),
	})

	msg := receive(t, conn)
	require.Equal(t, TypeError, msg.Type)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, CodeOracleUnavailable, data.Code)
}

func TestSession_BadFrames(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true))
	conn := srv.dial(t, nil)

	tests := []struct {
		name  string
		frame string
		code  string
	}{
		{"not json", "hello", CodeInvalidMessage},
		{"unknown type", `{"type":"launch_missiles"}`, CodeUnknownType},
		{"undecodable response", `{"type":"licensing_response","data":"nope"}`, CodeInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			msg := receive(t, conn)
			require.Equal(t, TypeError, msg.Type)

			var data ErrorData
			require.NoError(t, json.Unmarshal(msg.Data, &data))
			assert.Equal(t, tt.code, data.Code)
		})
	}
}

func TestSession_HeartbeatIgnored(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true))
	conn := srv.dial(t, nil)

	send(t, conn, TypeHeartbeat, nil)
	req := challenge(t, conn)
	assert.NotEmpty(t, req.ID, "first reply after a heartbeat is the challenge")
}

func TestHandler_CheckOrigin(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true), "https://app.example.com")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	conn := srv.dial(t, header)
	assert.NotEmpty(t, challenge(t, conn).ID)
}

func TestHub_ShutdownClosesSessions(t *testing.T) {
	srv := newTestServer(t, oracle.NewStatic(true))
	conn := srv.dial(t, nil)
	challenge(t, conn)

	assert.Eventually(t, func() bool { return srv.hub.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	srv.hub.Shutdown(context.Background())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return srv.hub.SessionCount() == 0 }, time.Second, 10*time.Millisecond)

	assert.False(t, srv.hub.Register(&Session{}))
}
