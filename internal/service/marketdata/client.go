// Package marketdata implements the live tick stream over WebSocket.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CandleScope/internal/domain/models"
	drepo "CandleScope/internal/domain/repository"
	applogger "CandleScope/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by a trade WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new WebSocket MarketStream.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) drepo.MarketStream {
	if log == nil {
		log = applogger.Nop()
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("market stream connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("market stream subscribed", applogger.Strings("symbols", c.symbols))
	return nil
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string      `json:"type"`
	Data []wireTrade `json:"data"`
}

// Read streams Tick events and errors. The tick channel drops on
// backpressure rather than stalling the read loop.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var m wireMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-trade frames
					continue
				}
				if m.Type != "trade" {
					continue
				}
				for _, d := range m.Data {
					tick := &models.Tick{
						Symbol:    d.S,
						Timestamp: d.T / 1000,
						Price:     d.P,
						Volume:    d.V,
					}
					select {
					case ticks <- tick:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
