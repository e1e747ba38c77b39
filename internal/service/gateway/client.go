package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a SightingStream backed by the scanner gateway's
// WebSocket feed. One gateway multiplexes any number of BLE scanners; the
// client subscribes to the scanner ids it wants frames from.
type Client struct {
	token          string
	websocketURL   string
	scanners       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new gateway SightingStream.
func New(token, websocketURL string, scanners []string, reconnectDelay, pingInterval time.Duration) drepo.SightingStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		scanners:       scanners,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("gateway: connected")
	return nil
}

// Subscribe subscribes to configured scanners.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("gateway not connected")
	}
	for _, s := range c.scanners {
		msg := map[string]string{"type": "subscribe", "scanner": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("gateway: subscribed %s", s)
	}
	return nil
}

type wsSighting struct {
	Address        string   `json:"addr"`
	Name           string   `json:"name"`
	ManufacturerID uint16   `json:"mfg_id"`
	Manufacturer   string   `json:"mfg_data"` // hex encoded
	ServiceUUIDs   []string `json:"svc_uuids"`
	RSSI           int      `json:"rssi"`
	TxPower        int      `json:"tx_power"`
	Appearance     uint16   `json:"appearance"`
	Timestamp      int64    `json:"ts"` // ms
	LocationID     string   `json:"location_id"`
}

type wsFrame struct {
	Type string       `json:"type"`
	Data []wsSighting `json:"data"`
}

// Read streams Sighting events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Sighting, <-chan error) {
	sightings := make(chan *models.Sighting, 1024)
	errs := make(chan error, 1)

	// ping loop
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

	// read loop
	go func() {
		defer close(sightings)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("gateway conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("gateway read: %w", err)
					return
				}
				var frame wsFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-sighting frames
					continue
				}
				if frame.Type != "sighting" {
					continue
				}
				for _, d := range frame.Data {
					s := decodeSighting(d)
					if s == nil {
						continue
					}
					select {
					case sightings <- s:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return sightings, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
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
