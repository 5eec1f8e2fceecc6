package acceptor_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/roster/pkg/acceptor"
	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) string {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	resp, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSpace(resp)
}

func startServer(t *testing.T, opts ...acceptor.Option) (*registry.Manager, *acceptor.Acceptor, string, context.CancelFunc, <-chan error) {
	t.Helper()
	reg := registry.New()
	acc := acceptor.New(reg, opts...)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- acc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		acc.KillAll()
		acc.Wait()
	})
	return reg, acc, ln.Addr().String(), cancel, served
}

func TestAcceptor_SessionLifecycle(t *testing.T) {
	reg, _, addr, _, _ := startServer(t)

	c := dial(t, addr)
	assert.Equal(t, "OK 1", c.send("HELLO alice"))
	assert.Equal(t, 1, reg.SessionCount())
	assert.Equal(t, uint64(1), reg.NumThreadCreated())

	assert.Equal(t, "PONG", c.send("PING"))
	assert.Equal(t, "1 alice", c.send("WHOAMI"))
	assert.Equal(t, "1", c.send("COUNT"))
	assert.Equal(t, "OK", c.send("SLEEP 1"))
	assert.Equal(t, "ERR invalid duration", c.send("SLEEP soon"))
	assert.Equal(t, "ERR invalid duration", c.send("SLEEP 9300000000000"), "duration overflow")
	assert.Equal(t, `ERR unknown command "DANCE"`, c.send("DANCE"))
	assert.Equal(t, "ERR line contains invalid UTF-8 sequences", c.send("PING \xff"))
	assert.Equal(t, "PONG", c.send("PI\x1bNG"), "control characters are stripped")

	found := reg.FindSessionByID(1)
	require.NotNil(t, found)
	assert.Equal(t, "alice", domain.Describe(found).User)

	long := dial(t, addr)
	require.Equal(t, "OK 2", long.send("HELLO mallory"))
	// A full buffer without a newline; nothing is left unread on the server side.
	_, err := long.conn.Write([]byte(strings.Repeat("x", acceptor.MaxLineSize)))
	require.NoError(t, err)
	require.NoError(t, long.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	resp, err := long.r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERR line too long", strings.TrimSpace(resp))
	_, err = long.r.ReadString('\n')
	assert.Error(t, err, "the connection is closed after an oversized line")

	assert.Equal(t, "BYE", c.send("QUIT"))
	assert.Eventually(t, func() bool { return reg.SessionCount() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return reg.ReservedIDCount() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), reg.NumThreadRunning())
}

func TestAcceptor_ManyClients(t *testing.T) {
	reg, _, addr, _, _ := startServer(t)

	const n = 8
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = dial(t, addr)
		assert.True(t, strings.HasPrefix(clients[i].send("HELLO user"), "OK "))
	}
	assert.Equal(t, n, reg.SessionCount())
	assert.Equal(t, uint64(n), reg.NumThreadCreated())

	seen := map[uint64]bool{}
	reg.ForEachSession(func(s domain.Session) { seen[s.ID()] = true })
	assert.Len(t, seen, n, "every session has its own ID")

	for _, c := range clients {
		c.conn.Close()
	}
	assert.Eventually(t, func() bool { return reg.SessionCount() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(n), reg.NumThreadCreated(), "created never decreases")
}

func TestAcceptor_RejectsBadHandshake(t *testing.T) {
	reg, _, addr, _, _ := startServer(t)

	c := dial(t, addr)
	assert.Equal(t, "ERR expected HELLO <user>", c.send("PING"))
	assert.Equal(t, 0, reg.SessionCount())
	assert.Equal(t, uint64(1), reg.NumThreadCreated(), "the worker was still created")
}

func TestAcceptor_KillInterruptsSession(t *testing.T) {
	reg, _, addr, _, _ := startServer(t)

	c := dial(t, addr)
	require.Equal(t, "OK 1", c.send("HELLO bob"))

	_, err := c.conn.Write([]byte("SLEEP 60000\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return reg.NumThreadRunning() == 1 }, 5*time.Second, 5*time.Millisecond)

	target := reg.FindSessionByID(1)
	require.NotNil(t, target)
	target.(domain.Killable).Kill()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.r.ReadString('\n')
	assert.Error(t, err, "a killed session's connection is closed")
	assert.Eventually(t, func() bool { return reg.SessionCount() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return reg.NumThreadRunning() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestAcceptor_ShutdownDrain(t *testing.T) {
	reg, acc, addr, cancel, served := startServer(t)

	c := dial(t, addr)
	require.Equal(t, "OK 1", c.send("HELLO carol"))

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// Stopping the listener leaves live sessions alone.
	assert.Equal(t, "PONG", c.send("PING"))
	assert.Equal(t, 1, reg.SessionCount())

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, reg.WaitUntilEmpty(ctx), context.DeadlineExceeded)

	assert.Equal(t, 1, acc.KillAll())
	acc.Wait()
	assert.Equal(t, 0, reg.SessionCount())
	assert.NoError(t, reg.WaitUntilEmpty(context.Background()))
}

func TestAcceptor_SilentClientDoesNotBlockShutdown(t *testing.T) {
	reg, acc, addr, cancel, served := startServer(t)

	c := dial(t, addr)
	assert.Eventually(t, func() bool { return reg.NumThreadCreated() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.Equal(t, 0, acc.KillAll())
	waited := make(chan struct{})
	go func() {
		acc.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked on a connection that never sent HELLO")
	}

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := c.r.ReadString('\n')
	assert.Error(t, err, "the silent connection is closed")
	assert.Equal(t, 0, reg.SessionCount())
}

func TestAcceptor_HandshakeTimeout(t *testing.T) {
	reg, _, addr, _, _ := startServer(t, acceptor.WithHandshakeTimeout(50*time.Millisecond))

	c := dial(t, addr)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	resp, err := c.r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERR handshake timeout", strings.TrimSpace(resp))
	assert.Equal(t, 0, reg.SessionCount())
	assert.Equal(t, 0, reg.ReservedIDCount())
}

func TestAcceptor_RefusesSessionsAfterKillAll(t *testing.T) {
	reg, acc, addr, _, _ := startServer(t)

	assert.Equal(t, 0, acc.KillAll())

	c := dial(t, addr)
	assert.Equal(t, "ERR server is shutting down", c.send("HELLO late"))
	assert.Equal(t, 0, reg.SessionCount())
	assert.Eventually(t, func() bool { return reg.ReservedIDCount() == 0 }, 5*time.Second, 5*time.Millisecond)
}
