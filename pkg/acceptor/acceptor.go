package acceptor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/roster/internal/logging"
	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/aretw0/roster/pkg/session"
)

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 4096

// DefaultHandshakeTimeout bounds how long a connection may take to send HELLO.
const DefaultHandshakeTimeout = 10 * time.Second

// maxSleepMillis keeps SLEEP durations within time.Duration.
const maxSleepMillis = math.MaxInt64 / int64(time.Millisecond)

// ErrShuttingDown is reported to clients that finish the handshake after
// serving stopped or KillAll was called.
var ErrShuttingDown = errors.New("server is shutting down")

// Registry is the part of the session registry a connection owner needs.
type Registry interface {
	AddSession(s domain.Session) bool
	RemoveSession(s domain.Session) bool
	SessionCount() int
	ForEachSessionSnapshot(v registry.Visitor)
	NewSessionID() uint64
	ReleaseSessionID(id uint64)
	NextQueryID() uint64
	IncThreadCreated()
	IncThreadRunning()
	DecThreadRunning()
}

// Acceptor owns the sessions of client connections: it creates one per accepted
// connection, registers it for the connection's lifetime and removes it on teardown.
type Acceptor struct {
	reg              Registry
	logger           *slog.Logger
	handshakeTimeout time.Duration
	workers          sync.WaitGroup

	mu      sync.Mutex // orders registration against KillAll
	stopped bool
}

// Option configures the Acceptor.
type Option func(*Acceptor)

// WithLogger configures a logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acceptor) {
		a.logger = logger
	}
}

// WithHandshakeTimeout bounds how long a new connection may stay silent before HELLO.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(a *Acceptor) {
		a.handshakeTimeout = d
	}
}

// New creates an Acceptor that registers its sessions with reg.
func New(reg Registry, opts ...Option) *Acceptor {
	a := &Acceptor{
		reg:              reg,
		logger:           logging.NewNop(),
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Serve accepts connections on ln until ctx is done, then closes ln and returns nil.
// Connections still in the handshake are closed with it; registered sessions are
// not touched, use KillAll and Wait to finish them.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	a.logger.Info("Accepting connections", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		a.reg.IncThreadCreated()
		a.workers.Add(1)
		go func() {
			defer a.workers.Done()
			a.handle(ctx, conn)
		}()
	}
}

// KillAll kills every live session that supports it and returns how many were killed.
// Afterwards no new session is registered.
func (a *Acceptor) KillAll() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true

	killed := 0
	a.reg.ForEachSessionSnapshot(func(s domain.Session) {
		if k, ok := s.(domain.Killable); ok {
			k.Kill()
			killed++
		}
	})
	return killed
}

// Wait blocks until every connection worker has returned.
func (a *Acceptor) Wait() {
	a.workers.Wait()
}

// handle runs one connection. serveCtx is the context of Serve: it bounds the
// handshake but not the registered session.
func (a *Acceptor) handle(serveCtx context.Context, conn net.Conn) {
	defer conn.Close()
	host := conn.RemoteAddr().String()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), MaxLineSize)

	stopHandshake := context.AfterFunc(serveCtx, func() {
		conn.Close()
	})
	conn.SetReadDeadline(time.Now().Add(a.handshakeTimeout))
	user, err := handshake(scanner)
	if !stopHandshake() {
		// Serving stopped mid-handshake and the connection is already closed.
		return
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			err = errors.New("handshake timeout")
		}
		a.logger.Warn("Handshake rejected", "host", host, "err", err)
		reply(conn, "ERR %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	id := a.reg.NewSessionID()
	defer a.reg.ReleaseSessionID(id)

	s := session.New(context.WithoutCancel(serveCtx), id, user, host)
	defer s.Kill()
	stopClose := context.AfterFunc(s.Context(), func() {
		conn.Close()
	})
	defer stopClose()

	if err := a.register(serveCtx, s); err != nil {
		a.logger.Info("Session refused", "host", host, "user", user, "err", err)
		reply(conn, "ERR %v", err)
		return
	}
	defer a.reg.RemoveSession(s)

	a.logger.Info("Session started", "session_id", id, "user", user, "host", host)
	reply(conn, "OK %d", id)

	for scanner.Scan() {
		line, err := SanitizeLine(scanner.Text())
		if err != nil {
			reply(conn, "ERR %v", err)
			continue
		}
		if !a.execute(s, conn, line) {
			break
		}
	}
	if err := scanner.Err(); err != nil && !s.Killed() && !errors.Is(err, net.ErrClosed) {
		if errors.Is(err, bufio.ErrTooLong) {
			reply(conn, "ERR line too long")
		}
		a.logger.Warn("Connection read failed", "session_id", id, "err", err)
	}
	a.logger.Info("Session ended", "session_id", id, "killed", s.Killed())
}

// register adds s unless serving stopped or KillAll already ran.
func (a *Acceptor) register(serveCtx context.Context, s *session.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || serveCtx.Err() != nil {
		return ErrShuttingDown
	}
	a.reg.AddSession(s)
	return nil
}

func handshake(scanner *bufio.Scanner) (string, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	line, err := SanitizeLine(scanner.Text())
	if err != nil {
		return "", err
	}
	verb, user, _ := strings.Cut(line, " ")
	if !strings.EqualFold(verb, "HELLO") || strings.TrimSpace(user) == "" {
		return "", errors.New("expected HELLO <user>")
	}
	return strings.TrimSpace(user), nil
}

// execute runs one command line and reports whether the connection stays open.
func (a *Acceptor) execute(s *session.Session, w io.Writer, line string) bool {
	if line == "" {
		return true
	}
	a.reg.IncThreadRunning()
	defer a.reg.DecThreadRunning()

	qid := a.reg.NextQueryID()
	s.Begin(line)
	defer s.End()
	a.logger.Debug("Executing command", "session_id", s.ID(), "query_id", qid, "command", line)

	verb, arg, _ := strings.Cut(line, " ")
	switch strings.ToUpper(verb) {
	case "PING":
		reply(w, "PONG")
	case "WHOAMI":
		reply(w, "%d %s", s.ID(), s.User())
	case "COUNT":
		reply(w, "%d", a.reg.SessionCount())
	case "SLEEP":
		ms, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || ms < 0 || ms > maxSleepMillis {
			reply(w, "ERR invalid duration")
			return true
		}
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			reply(w, "OK")
		case <-s.Context().Done():
			return false
		}
	case "QUIT":
		reply(w, "BYE")
		return false
	default:
		reply(w, "ERR unknown command %q", verb)
	}
	return true
}

func reply(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
