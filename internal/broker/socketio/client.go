// Package socketio is a minimal Socket.IO v5 client over a single websocket,
// covering what the worker needs: the default namespace, event frames and
// Engine.IO heartbeats.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/broker"
	"github.com/JakeFAU/firmlight-worker/internal/task"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultPingTimeout      = 20 * time.Second
	writeTimeout            = 10 * time.Second
)

// Config controls the connection.
type Config struct {
	// URL is the broker base address, e.g. https://broker.example.
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

// Client implements broker.Channel.
type Client struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	sid          string
	pingInterval time.Duration
	pingTimeout  time.Duration
	closeOnce    sync.Once
	logger       *zap.Logger
}

// Dial connects, authenticates with the bearer token and joins the default
// namespace. Any failure is wrapped in broker.ErrConnect.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	endpoint, err := Endpoint(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", broker.ErrConnect, err)
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", broker.ErrConnect, endpoint, err)
	}

	c := &Client{
		conn:         conn,
		pingInterval: defaultPingInterval,
		pingTimeout:  defaultPingTimeout,
		logger:       logger,
	}
	if err := c.handshake(cfg.HandshakeTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", broker.ErrConnect, err)
	}
	logger.Info("connected to broker", zap.String("sid", c.sid))
	return c, nil
}

func (c *Client) handshake(timeout time.Duration) error {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	open, err := c.next()
	if err != nil {
		return err
	}
	if open.kind != kindOpen {
		return fmt.Errorf("expected open packet, got kind %d", open.kind)
	}
	var info openPayload
	if err := json.Unmarshal(open.data, &info); err != nil {
		return fmt.Errorf("decode open packet: %w", err)
	}
	if info.PingInterval > 0 {
		c.pingInterval = time.Duration(info.PingInterval) * time.Millisecond
	}
	if info.PingTimeout > 0 {
		c.pingTimeout = time.Duration(info.PingTimeout) * time.Millisecond
	}

	if err := c.write([]byte{engineMessage, socketConnect}); err != nil {
		return err
	}
	for {
		p, err := c.next()
		if err != nil {
			return err
		}
		switch p.kind {
		case kindPing:
			if err := c.write([]byte{enginePong}); err != nil {
				return err
			}
		case kindConnect:
			var ack struct {
				SID string `json:"sid"`
			}
			_ = json.Unmarshal(p.data, &ack)
			c.sid = ack.SID
			return nil
		case kindConnectError:
			return fmt.Errorf("namespace connect refused: %s", p.data)
		case kindClose, kindDisconnect:
			return errors.New("connection closed during handshake")
		}
	}
}

// Serve reads frames until ctx ends or the broker goes away. It returns nil
// on a ctx-initiated stop and an error wrapping broker.ErrChannelClosed otherwise.
func (c *Client) Serve(ctx context.Context, handle broker.EventHandler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pingTimeout)); err != nil {
			return fmt.Errorf("%w: %w", broker.ErrChannelClosed, err)
		}
		p, err := c.next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errMalformed) {
				c.logger.Warn("skipping malformed frame", zap.Error(err))
				continue
			}
			c.logger.Warn("disconnected from broker", zap.Error(err))
			return fmt.Errorf("%w: %w", broker.ErrChannelClosed, err)
		}
		switch p.kind {
		case kindPing:
			if err := c.write([]byte{enginePong}); err != nil {
				return fmt.Errorf("%w: pong: %w", broker.ErrChannelClosed, err)
			}
		case kindEvent:
			handle(ctx, p.event, p.data)
		case kindClose, kindDisconnect:
			c.logger.Warn("disconnected from broker", zap.String("reason", "server closed"))
			return fmt.Errorf("%w: server closed the session", broker.ErrChannelClosed)
		}
	}
}

// Report emits a taskResult event.
func (c *Client) Report(_ context.Context, result task.Result) error {
	return c.Emit(broker.EventTaskResult, result)
}

// Emit sends an event with a single argument.
func (c *Client) Emit(event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// Close leaves the namespace and closes the socket. It is safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.write([]byte{engineMessage, socketDisconnect})
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) next() (packet, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return packet{}, fmt.Errorf("read frame: %w", err)
	}
	if msgType != websocket.TextMessage {
		return packet{kind: kindOther}, nil
	}
	return decode(data)
}

// write serializes frames; gorilla/websocket allows one concurrent writer.
func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", broker.ErrChannelClosed, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %w", broker.ErrChannelClosed, err)
	}
	return nil
}
