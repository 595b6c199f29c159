package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/staffchat/pkg/protocol"
)

type wsTestClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialTestWS(t *testing.T, srv *Server) *wsTestClient {
	t.Helper()
	hs := httptest.NewServer(srv.wsHandler())
	t.Cleanup(hs.Close)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &wsTestClient{t: t, ws: ws}
}

func (c *wsTestClient) send(f *protocol.Frame) {
	c.t.Helper()
	data, err := protocol.Encode(f)
	if err != nil {
		c.t.Fatalf("Encode: %v", err)
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.t.Fatalf("WriteMessage: %v", err)
	}
}

func (c *wsTestClient) recv() *protocol.Frame {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	typ, data, err := c.ws.ReadMessage()
	if err != nil {
		c.t.Fatalf("ReadMessage: %v", err)
	}
	if typ != websocket.BinaryMessage {
		c.t.Fatalf("message type: got %d, want binary", typ)
	}
	dec := protocol.NewDecoder()
	frames, err := dec.Feed(data)
	if err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	if len(frames) != 1 {
		c.t.Fatalf("expected one frame per ws message, got %d", len(frames))
	}
	return frames[0]
}

// A websocket client goes through the same session pipeline as a TCP one:
// it can register, log in, appear in lists, and receive messages.
func TestWebSocketTransport(t *testing.T) {
	srv := startTestServer(t)

	w := dialTestWS(t, srv)
	w.send(&protocol.Frame{Register: &protocol.Register{
		Username: "wendy", Password: "secret123", Department: "Support",
	}})
	if f := w.recv(); f.OK == nil || f.OK.Op != "register" {
		t.Fatalf("expected OK(register), got %+v", f)
	}
	w.send(&protocol.Frame{Login: &protocol.Login{Username: "wendy", Password: "secret123"}})
	if f := w.recv(); f.OK == nil || f.OK.Op != "login" {
		t.Fatalf("expected OK(login), got %+v", f)
	}

	// A TCP client sees the websocket user and can message it.
	a := dialTestServer(t, srv)
	a.register("alice", "secret123", "", "", "")
	a.login("alice", "secret123")

	if names := usernames(a.userList()); len(names) != 1 || names[0] != "wendy" {
		t.Fatalf("alice's user list: got %v, want [wendy]", names)
	}

	a.send(&protocol.Frame{SendMessage: &protocol.SendMessage{To: "wendy", Text: "hello over ws"}})
	a.mustOK("send")

	f := w.recv()
	if f.Deliver == nil || f.Deliver.From != "alice" || f.Deliver.Text != "hello over ws" {
		t.Fatalf("Deliver over websocket: %+v", f)
	}

	// And back the other way.
	w.send(&protocol.Frame{SendMessage: &protocol.SendMessage{To: "alice", Text: "hi back"}})
	if f := w.recv(); f.OK == nil || f.OK.Op != "send" {
		t.Fatalf("expected OK(send), got %+v", f)
	}
	got := a.recv()
	if got.Deliver == nil || got.Deliver.From != "wendy" || got.Deliver.Text != "hi back" {
		t.Fatalf("Deliver to TCP client: %+v", got)
	}
}
