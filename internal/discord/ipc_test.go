package discord

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcClient{conn: client}

	// Write a frame from the client side.
	payload := `{"cmd":"SET_ACTIVITY","nonce":"abc123"}`
	go func() {
		if err := c.writeFrame(opFrame, []byte(payload)); err != nil {
			t.Errorf("writeFrame: %v", err)
		}
	}()

	// Read raw bytes from the server side and verify framing.
	header := make([]byte, 8)
	if _, err := io.ReadFull(server, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	opcode := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	if opcode != opFrame {
		t.Errorf("opcode = %d, want %d", opcode, opFrame)
	}
	if int(length) != len(payload) {
		t.Errorf("length = %d, want %d", length, len(payload))
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(server, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != payload {
		t.Errorf("body = %q, want %q", body, payload)
	}
}

func TestReadFrameLargePayload(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcClient{conn: server}

	// Build a payload >512 bytes.
	large := make([]byte, 2048)
	for i := range large {
		large[i] = 'x'
	}

	// Write raw frame from client side simulating Discord.
	go func() {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[0:4], opFrame)
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(large)))
		_, _ = client.Write(header)
		_, _ = client.Write(large)
	}()

	opcode, payload, err := c.readFrame()
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if opcode != opFrame {
		t.Errorf("opcode = %d, want %d", opcode, opFrame)
	}
	if len(payload) != len(large) {
		t.Errorf("payload length = %d, want %d", len(payload), len(large))
	}
}

func TestReadFrameHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcClient{conn: server}

	payload := `{"cmd":"DISPATCH","evt":"READY"}`
	go func() {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[0:4], opHandshake)
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
		_, _ = client.Write(header)
		_, _ = client.Write([]byte(payload))
	}()

	opcode, data, err := c.readFrame()
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if opcode != opHandshake {
		t.Errorf("opcode = %d, want %d", opcode, opHandshake)
	}
	if string(data) != payload {
		t.Errorf("data = %q, want %q", data, payload)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcClient{conn: server}

	go func() {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[0:4], opFrame)
		binary.LittleEndian.PutUint32(header[4:8], maxFrameSize+1)
		_, _ = client.Write(header)
	}()

	if _, _, err := c.readFrame(); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}

// serveOneCommand answers the next frame on conn with reply and returns the
// decoded command.
func serveOneCommand(t *testing.T, conn net.Conn, reply string) <-chan map[string]any {
	t.Helper()
	got := make(chan map[string]any, 1)
	go func() {
		peer := &ipcClient{conn: conn}
		_, data, err := peer.readFrame()
		if err != nil {
			t.Errorf("server readFrame: %v", err)
			close(got)
			return
		}
		var cmd map[string]any
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Errorf("server unmarshal: %v", err)
		}
		got <- cmd
		_ = peer.writeFrame(opFrame, []byte(reply))
	}()
	return got
}

func TestSetActivity(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	got := serveOneCommand(t, server, `{"cmd":"SET_ACTIVITY","evt":null,"data":{}}`)

	c := &ipcClient{conn: client}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.SetActivity(ctx, &Activity{Type: activityListening, Name: "Music", Details: "Alpha"})
	if err != nil {
		t.Fatalf("SetActivity: %v", err)
	}

	cmd := <-got
	if cmd["cmd"] != "SET_ACTIVITY" {
		t.Errorf("cmd = %v, want SET_ACTIVITY", cmd["cmd"])
	}
	if nonce, _ := cmd["nonce"].(string); len(nonce) != 32 {
		t.Errorf("nonce = %q, want 32 hex characters", nonce)
	}
	args, _ := cmd["args"].(map[string]any)
	activity, _ := args["activity"].(map[string]any)
	if activity["details"] != "Alpha" {
		t.Errorf("activity details = %v, want Alpha", activity["details"])
	}
}

func TestSetActivityNilClears(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	got := serveOneCommand(t, server, `{"cmd":"SET_ACTIVITY","data":null}`)

	c := &ipcClient{conn: client}
	if err := c.SetActivity(context.Background(), nil); err != nil {
		t.Fatalf("SetActivity: %v", err)
	}

	args, _ := (<-got)["args"].(map[string]any)
	if v, ok := args["activity"]; !ok || v != nil {
		t.Errorf("activity = %v, want explicit null", v)
	}
}

func TestSetActivityErrorEvent(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	serveOneCommand(t, server, `{"cmd":"SET_ACTIVITY","evt":"ERROR","data":{"code":4000,"message":"child \"activity\" fails"}}`)

	c := &ipcClient{conn: client}
	err := c.SetActivity(context.Background(), &Activity{Details: "Alpha"})
	if err == nil || !strings.Contains(err.Error(), "4000") {
		t.Fatalf("SetActivity error = %v, want discord error 4000", err)
	}
}

func TestSetActivityHonoursDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	// Drain the command but never answer.
	go func() { _, _ = io.Copy(io.Discard, server) }()

	c := &ipcClient{conn: client}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := c.SetActivity(ctx, &Activity{Details: "Alpha"}); err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("SetActivity took %v, want it bounded by the context", elapsed)
	}
}
