package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reporover/internal/config"
)

// DefaultSubject is the base subject when none is configured.
const DefaultSubject = "reporover.progress"

// ErrNoChannel is returned by Open when neither a URL nor the embedded
// server is configured.
var ErrNoChannel = errors.New("no progress channel configured")

// NATSEmitter publishes progress messages to <base>.<owner>, or to <base>
// when ctx carries no owner. It is also a Source for those subjects.
type NATSEmitter struct {
	nc     *nats.Conn
	base   string
	logger *zap.Logger
}

// NewNATSEmitter wraps an established connection.
func NewNATSEmitter(nc *nats.Conn, base string, logger *zap.Logger) *NATSEmitter {
	if base == "" {
		base = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSEmitter{nc: nc, base: base, logger: logger}
}

// Subject returns the subject messages for owner are published on.
func (e *NATSEmitter) Subject(owner string) string {
	if owner == "" {
		return e.base
	}
	return e.base + "." + subjectToken(owner)
}

// Emit implements Emitter. Publish errors are logged and dropped.
func (e *NATSEmitter) Emit(ctx context.Context, msg string) {
	subject := e.Subject(Owner(ctx))
	if err := e.nc.Publish(subject, []byte(msg)); err != nil {
		e.logger.Warn("progress publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Subscribe implements Source.
func (e *NATSEmitter) Subscribe(owner string) (<-chan string, func(), error) {
	out := make(chan string, defaultListenerBuffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := e.nc.Subscribe(e.Subject(owner), func(m *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- string(m.Data):
		default:
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", e.Subject(owner), err)
	}
	// Make sure the server knows about the interest before returning, so
	// an Emit right after Subscribe is not lost.
	if err := e.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		})
	}
	return out, cancel, nil
}

// subjectToken maps an owner id onto a single NATS subject token.
func subjectToken(owner string) string {
	var b strings.Builder
	b.Grow(len(owner))
	for _, r := range owner {
		switch {
		case r == '.' || r == '*' || r == '>' || r <= ' ' || r == 0x7f:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Channel is an open NATS progress channel, optionally backed by an
// in-process server.
type Channel struct {
	Conn    *nats.Conn
	Server  *natsserver.Server
	Emitter *NATSEmitter
}

// Open connects to cfg.URL, or starts an embedded server when the URL is
// empty and cfg.Embedded is set.
func Open(cfg config.NATSConfig, logger *zap.Logger) (*Channel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ch := &Channel{}
	url := cfg.URL
	if url == "" {
		if !cfg.Embedded {
			return nil, ErrNoChannel
		}
		srv, err := StartEmbedded()
		if err != nil {
			return nil, err
		}
		ch.Server = srv
		url = srv.ClientURL()
		logger.Info("started embedded nats server", zap.String("url", url))
	}

	nc, err := nats.Connect(url,
		nats.Name("reporover"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	ch.Conn = nc
	ch.Emitter = NewNATSEmitter(nc, cfg.Subject, logger)
	return ch, nil
}

// Close drains the connection and stops the embedded server, if any.
func (c *Channel) Close() {
	if c == nil {
		return
	}
	if c.Conn != nil {
		c.Conn.Close()
	}
	if c.Server != nil {
		c.Server.Shutdown()
		c.Server.WaitForShutdown()
	}
}

// StartEmbedded runs a loopback-only nats-server on a random port.
func StartEmbedded() (*natsserver.Server, error) {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, errors.New("nats server not ready")
	}
	return srv, nil
}
