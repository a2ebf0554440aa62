package tail

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/logstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr reserves an ephemeral port and releases it for the server
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func startServer(t *testing.T, reg *logstream.Registry) (*Server, string) {
	t.Helper()
	addr := freeAddr(t)
	srv := New(reg, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv, addr
}

type tailClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *tailClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &tailClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *tailClient) readLine(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

// readRecord returns the next streamed record not emitted by the server itself
func (c *tailClient) readRecord(t *testing.T) map[string]any {
	t.Helper()
	for {
		line := c.readLine(t)
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // Command replies
		}
		if entry["label"] == LoggerName || entry["label"] == nil {
			continue
		}
		return entry
	}
}

func (c *tailClient) send(t *testing.T, cmd string) {
	t.Helper()
	_, err := c.conn.Write([]byte(cmd + "\n"))
	require.NoError(t, err)
}

// readReply skips streamed records until a command reply arrives
func (c *tailClient) readReply(t *testing.T) string {
	t.Helper()
	for {
		line := c.readLine(t)
		if !strings.HasPrefix(line, "{") {
			return line
		}
	}
}

func TestServerReplaysHistoryThenStreams(t *testing.T) {
	reg := logstream.NewRegistry()
	app := reg.Get("app")
	app.Info("before one")
	app.Warn("before two", "attempt", 2)

	_, addr := startServer(t, reg)
	c := dial(t, addr)

	var banner map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.readLine(t)), &banner))
	assert.NotEmpty(t, banner["connection"])
	assert.EqualValues(t, logstream.DefaultHistorySize, banner["history_cap"])

	first := c.readRecord(t)
	assert.Equal(t, "before one", first["message"])
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "app", first["label"])

	second := c.readRecord(t)
	assert.Equal(t, "before two", second["message"])
	assert.Equal(t, []any{"attempt", 2.0}, second["fields"])

	app.Error("live record")
	live := c.readRecord(t)
	assert.Equal(t, "live record", live["message"])
	assert.Equal(t, "ERROR", live["level"])
}

func TestServerLevelFilter(t *testing.T) {
	reg := logstream.NewRegistry()
	_, addr := startServer(t, reg)
	c := dial(t, addr)
	c.readLine(t) // Banner

	c.send(t, "level=warn")
	assert.Equal(t, "ok level=warn", c.readReply(t))

	app := reg.Get("app")
	app.Info("filtered out")
	app.Warn("passes")

	entry := c.readRecord(t)
	assert.Equal(t, "passes", entry["message"])

	c.send(t, "level=verbose")
	assert.Contains(t, c.readReply(t), "error:")
}

func TestServerCommands(t *testing.T) {
	reg := logstream.NewRegistry()
	srv, addr := startServer(t, reg)
	c := dial(t, addr)
	c.readLine(t)

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	c.send(t, "stats")
	reply := c.readReply(t)
	assert.True(t, strings.HasPrefix(reply, "ok published="), reply)
	assert.Contains(t, reply, "clients=1")

	c.send(t, "bogus")
	assert.Contains(t, c.readReply(t), `unknown command "bogus"`)

	c.send(t, "quit")
	assert.Equal(t, "bye", c.readReply(t))
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerStartTwice(t *testing.T) {
	reg := logstream.NewRegistry()
	srv, _ := startServer(t, reg)
	assert.Error(t, srv.Start(context.Background()))
}

func TestServerStopUnsubscribes(t *testing.T) {
	reg := logstream.NewRegistry()
	addr := freeAddr(t)
	srv := New(reg, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	before := reg.Bus().Stats().Subscribers
	require.NoError(t, srv.Start(ctx))
	assert.Equal(t, before+1, reg.Bus().Stats().Subscribers)

	require.NoError(t, srv.Stop(ctx))
	assert.Equal(t, before, reg.Bus().Stats().Subscribers)
	assert.Contains(t, reg.Names(), LoggerName)
}
