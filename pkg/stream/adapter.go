package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultMaxRetries is the number of consecutive failed connection
	// attempts tolerated before the adapter gives up.
	DefaultMaxRetries = 6
	// pingInterval is how often the client pings to keep the socket warm.
	pingInterval = 20 * time.Second
	// readTimeout bounds how long a connection may stay silent. The service
	// answers pings, so a healthy connection never trips it.
	readTimeout = 60 * time.Second
)

// ErrRetriesExhausted is returned by Run once the reconnect budget is spent.
// Callers surface it as a terminal transport failure.
var ErrRetriesExhausted = errors.New("stream: reconnect attempts exhausted")

// Handler receives decoded events. It is invoked from a single goroutine in
// arrival order; it must not block for long.
type Handler func(Event)

// Adapter owns one logical subscription to the per-analysis event stream.
// It decodes inbound messages, drops what it cannot parse, and reconnects
// with bounded backoff on transient failure. It holds no business state.
type Adapter struct {
	wsURL      string
	analysisID string
	handler    Handler
	backoff    Backoff
	maxRetries int
	dialer     *websocket.Dialer
}

// NewAdapter creates an adapter for one analysis id.
// baseURL is the websocket origin, e.g. "ws://127.0.0.1:8000".
func NewAdapter(baseURL, analysisID string) *Adapter {
	return &Adapter{
		wsURL:      baseURL,
		analysisID: analysisID,
		backoff:    DefaultBackoff(),
		maxRetries: DefaultMaxRetries,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Subscribe registers the event handler. Must be called before Run.
func (a *Adapter) Subscribe(h Handler) {
	a.handler = h
}

// SetBackoff replaces the reconnect strategy (tests use a zero-wait one).
func (a *Adapter) SetBackoff(b Backoff, maxRetries int) {
	a.backoff = b
	a.maxRetries = maxRetries
}

// Run connects and tails the stream until the context is cancelled or the
// reconnect budget is exhausted. It returns nil on cancellation and
// ErrRetriesExhausted on a terminal transport failure. After Run returns, no
// further events are delivered to the handler.
func (a *Adapter) Run(ctx context.Context) error {
	if a.handler == nil {
		return errors.New("stream: Run called without a subscribed handler")
	}

	target, err := a.dialURL()
	if err != nil {
		return err
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := a.dialer.DialContext(ctx, target, nil)
		if err != nil {
			attempt++
			ReconnectsTotal.Inc()
			if attempt > a.maxRetries {
				return fmt.Errorf("%w: last error: %v", ErrRetriesExhausted, err)
			}
			log.Printf("stream: connect attempt %d/%d failed: %v", attempt, a.maxRetries, err)
			if !sleepCtx(ctx, a.backoff.Next(attempt-1)) {
				return nil
			}
			continue
		}

		// A successful dial resets the budget; only consecutive failures count.
		attempt = 0

		err = a.readLoop(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("stream: connection lost for %s: %v", a.analysisID, err)
	}
}

// readLoop pumps one live connection until it breaks or the context ends.
func (a *Adapter) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		event, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownKind) {
				// Forward compatibility: newer services may emit kinds
				// this client does not model.
				DroppedTotal.WithLabelValues("unknown_kind").Inc()
				continue
			}
			DroppedTotal.WithLabelValues("malformed").Inc()
			log.Printf("stream: dropping malformed message: %v", err)
			continue
		}

		EventsTotal.WithLabelValues(string(event.Kind())).Inc()

		// Never deliver into a torn-down subscriber.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.handler(event)
	}
}

func (a *Adapter) dialURL() (string, error) {
	u, err := url.Parse(a.wsURL)
	if err != nil {
		return "", fmt.Errorf("stream: invalid base url %q: %w", a.wsURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws/analysis/" + a.analysisID
	return u.String(), nil
}

// sleepCtx waits for d or until the context ends. Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
