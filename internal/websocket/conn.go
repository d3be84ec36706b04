// Package websocket carries panel messages between the host and a browser
// page.
//
// A Conn owns one accepted connection and runs three loops under an
// errgroup: the read pump, which feeds inbound text messages to a single
// dispatch worker, and the write pump, which drains the send queue and
// pings the peer. Handlers run one at a time in arrival order, so a slow
// handler never stalls control frame processing.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/visualtree/internal/logging"
	"github.com/conneroisu/visualtree/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the peer to answer a ping.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Selections of many paths
	// are the largest inbound messages.
	maxMessageSize = 1 << 20

	sendBufferSize  = 64
	inboxBufferSize = 16
)

var (
	// ErrClosed is returned by Send after the connection is gone.
	ErrClosed = errors.New("websocket: connection closed")
	// ErrSendBufferFull is returned when the peer is not draining messages.
	ErrSendBufferFull = errors.New("websocket: send buffer full")
	// ErrOriginRejected is returned by Accept for disallowed origins.
	ErrOriginRejected = errors.New("websocket: origin not allowed")
)

// MessageHandler receives one inbound text message.
type MessageHandler func(ctx context.Context, msg []byte)

// Options configures Accept.
type Options struct {
	// AllowedOrigins lists origins or hosts permitted to connect.
	AllowedOrigins []string
	// ReadLimit caps inbound message size. Zero uses the default.
	ReadLimit int64
	// MessageLimit and MessageWindow bound inbound messages per
	// connection. A zero limit disables rate limiting.
	MessageLimit  int
	MessageWindow time.Duration
	Logger        logging.Logger
}

// Conn is one accepted panel connection.
type Conn struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *SlidingWindowRateLimiter
	logger  logging.Logger
	remote  string

	lastActivity atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// Accept validates the origin of r and upgrades it to a websocket.
func Accept(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("websocket")

	if err := validation.ValidateOrigin(r.Header.Get("Origin"), opts.AllowedOrigins); err != nil {
		logger.Warn(r.Context(), err, "WebSocket connection rejected", "remote", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return nil, errors.Join(ErrOriginRejected, err)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin already validated above
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		logger.Error(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return nil, err
	}

	limit := opts.ReadLimit
	if limit <= 0 {
		limit = maxMessageSize
	}
	conn.SetReadLimit(limit)

	c := &Conn{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With("remote", r.RemoteAddr),
		remote: r.RemoteAddr,
		done:   make(chan struct{}),
	}
	if opts.MessageLimit > 0 {
		c.limiter = NewSlidingWindowRateLimiter(opts.MessageLimit, opts.MessageWindow)
	}
	c.touch()

	return c, nil
}

// Serve runs the pumps until the peer goes away, ctx is cancelled or
// Close is called. It returns nil for a normal closure.
func (c *Conn) Serve(ctx context.Context, handle MessageHandler) error {
	defer c.Close(websocket.StatusNormalClosure, "")

	g, ctx := errgroup.WithContext(ctx)
	inbox := make(chan []byte, inboxBufferSize)

	g.Go(func() error {
		defer close(inbox)
		return c.readPump(ctx, inbox)
	})
	g.Go(func() error {
		return c.writePump(ctx)
	})
	g.Go(func() error {
		for msg := range inbox {
			handle(ctx, msg)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-c.done:
			return ErrClosed
		case <-ctx.Done():
			return nil
		}
	})

	err := g.Wait()
	if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}

func (c *Conn) readPump(ctx context.Context, inbox chan<- []byte) error {
	for {
		// Liveness comes from the ping loop; an idle page is not an error.
		typ, msg, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return err
		}
		c.touch()

		if typ != websocket.MessageText {
			c.logger.Debug(ctx, "Ignoring binary message", "bytes", len(msg))
			continue
		}

		if c.limiter != nil && !c.limiter.IsAllowed() {
			c.logger.Warn(ctx, nil, "WebSocket message rate limit exceeded, dropping message")
			continue
		}

		select {
		case inbox <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.logger.Warn(ctx, err, "WebSocket write failed")
				return err
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pongWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Warn(ctx, err, "WebSocket ping failed")
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Send queues msg for delivery without blocking.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close closes the connection with the given status. It is safe to call
// more than once.
func (c *Conn) Close(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		// The handshake completes through the running read pump, so the
		// pumps are only stopped afterwards.
		if err := c.conn.Close(status, reason); err != nil && websocket.CloseStatus(err) == -1 {
			c.logger.Debug(context.Background(), "WebSocket close", "error", err.Error())
		}
		close(c.done)
	})
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// RemoteAddr returns the peer address recorded at upgrade time.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// LastActivity returns the time of the last inbound frame.
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Conn) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}
