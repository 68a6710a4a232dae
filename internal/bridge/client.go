package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chart-recorder/internal/engine"
	"chart-recorder/internal/platform"
)

// ClientConfig configures the feed client's connection behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control messages.
	WriteTimeout time.Duration
}

// DefaultClientConfig returns the default connection configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client consumes the export feed and drives the engine. All frame
// application and engine passes run on the Run goroutine; the engine's
// single-threaded model depends on that.
type Client struct {
	endpoint string
	config   ClientConfig
	snap     *platform.Snapshot
	eng      *engine.Engine
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewClient creates a feed client over a snapshot and an engine. config nil
// selects defaults.
func NewClient(endpoint string, snap *platform.Snapshot, eng *engine.Engine, config *ClientConfig, logger *log.Logger) *Client {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	return &Client{
		endpoint: endpoint,
		config:   cfg,
		snap:     snap,
		eng:      eng,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run connects and processes frames until ctx is canceled or Close is
// called. Connection loss reconnects with exponential backoff; snapshot
// state survives reconnects, so gates keep suppressing duplicates across
// them.
func (c *Client) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.pingLoop()

	delay := c.config.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			if err := c.reconnect(ctx, &delay); err != nil {
				return err
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			c.logf("read: %v", err)
			c.dropConn()
			if err := c.reconnect(ctx, &delay); err != nil {
				return err
			}
			continue
		}
		delay = c.config.ReconnectDelay

		c.handleMessage(ctx, message)
	}
}

// handleMessage decodes one envelope, applies it and runs an engine pass on
// update frames. A malformed frame is logged and skipped; the feed goes on.
func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var f Frame
	if err := json.Unmarshal(message, &f); err != nil {
		c.logf("decode frame: %v", err)
		return
	}

	update, err := Apply(c.snap, f)
	if err != nil {
		c.logf("apply frame: %v", err)
		return
	}
	if update {
		c.eng.ProcessUpdate(ctx, f.Chart)
	}
}

// Close stops the client and closes the connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	c.logf("connected to %s", c.endpoint)
	return nil
}

func (c *Client) dropConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// reconnect waits out the backoff delay and dials again, doubling the delay
// on failure up to the configured maximum.
func (c *Client) reconnect(ctx context.Context, delay *time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return nil
	case <-time.After(*delay):
	}

	if err := c.connect(ctx); err != nil {
		c.logf("reconnect: %v", err)
		*delay *= 2
		if *delay > c.config.MaxReconnectDelay {
			*delay = c.config.MaxReconnectDelay
		}
	} else {
		*delay = c.config.ReconnectDelay
	}
	return nil
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
				}
			}
			c.connMu.Unlock()
		}
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
