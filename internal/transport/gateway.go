package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 54 * time.Second
	reconnectWait = 2 * time.Second
	writeTimeout  = 10 * time.Second
)

// frame is the gateway's JSON envelope. The platform's own protocol is
// out of scope; this is the minimal shape the relay speaks.
type frame struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

type identifyPayload struct {
	Token string `json:"token"`
}

type messagePayload struct {
	AuthorID  string `json:"author_id"`
	ChannelID string `json:"channel_id"`
	DM        bool   `json:"dm"`
	Content   string `json:"content"`
}

type sendPayload struct {
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

// Gateway is a websocket client session against the chat platform
// relay. It identifies with the bot token, pumps inbound message frames
// onto a channel, and reconnects on failure until Close.
type Gateway struct {
	url   string
	token string
	log   *zap.Logger

	msgs chan Inbound
	done chan struct{}

	mu   sync.Mutex // guards conn and writes; gorilla allows one writer
	conn *websocket.Conn

	closeOnce sync.Once
}

func Dial(ctx context.Context, url, token string, log *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		url:   url,
		token: token,
		log:   log,
		msgs:  make(chan Inbound, 64),
		done:  make(chan struct{}),
	}
	if err := g.connect(ctx); err != nil {
		return nil, err
	}
	go g.run()
	return g, nil
}

func (g *Gateway) Messages() <-chan Inbound {
	return g.msgs
}

func (g *Gateway) SendDM(ctx context.Context, userID, text string) error {
	return g.send(frameOf("send", sendPayload{UserID: userID, Content: text}))
}

func (g *Gateway) SendChannel(ctx context.Context, channelID, text string) error {
	return g.send(frameOf("send", sendPayload{ChannelID: channelID, Content: text}))
}

func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		close(g.done)
		g.mu.Lock()
		if g.conn != nil {
			g.conn.Close()
		}
		g.mu.Unlock()
	})
	return nil
}

func (g *Gateway) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	ident := frameOf("identify", identifyPayload{Token: g.token})
	if err := conn.WriteJSON(ident); err != nil {
		conn.Close()
		return fmt.Errorf("identify: %w", err)
	}

	g.mu.Lock()
	if g.conn != nil {
		g.conn.Close()
	}
	g.conn = conn
	g.mu.Unlock()
	g.log.Info("gateway connected", zap.String("url", g.url))
	return nil
}

type pumpErr struct {
	conn *websocket.Conn
	err  error
}

// run owns the read loop and the ping ticker, reconnecting on error.
// Errors from a pump on an already-replaced connection are ignored.
func (g *Gateway) run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	readErr := make(chan pumpErr, 4)
	go g.readPump(g.current(), readErr)

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			conn := g.current()
			if conn != nil {
				g.mu.Lock()
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					g.log.Warn("gateway ping failed", zap.Error(err))
				}
				g.mu.Unlock()
			}
		case pe := <-readErr:
			select {
			case <-g.done:
				return
			default:
			}
			if pe.conn != g.current() {
				continue // stale pump
			}
			g.log.Warn("gateway read failed, reconnecting", zap.Error(pe.err))
			time.Sleep(reconnectWait)
			if err := g.connect(context.Background()); err != nil {
				g.log.Warn("gateway reconnect failed", zap.Error(err))
				// retry on the next readErr tick
				go func() { readErr <- pe }()
				continue
			}
			go g.readPump(g.current(), readErr)
		}
	}
}

func (g *Gateway) current() *websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn
}

func (g *Gateway) readPump(conn *websocket.Conn, readErr chan<- pumpErr) {
	if conn == nil {
		readErr <- pumpErr{err: fmt.Errorf("no connection")}
		return
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			readErr <- pumpErr{conn: conn, err: err}
			return
		}
		if f.Op != "message" {
			continue
		}
		var p messagePayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			g.log.Warn("bad message frame", zap.Error(err))
			continue
		}
		select {
		case g.msgs <- Inbound{
			ActorID:   p.AuthorID,
			ChannelID: p.ChannelID,
			DM:        p.DM,
			Text:      p.Content,
		}:
		case <-g.done:
			return
		}
	}
}

func (g *Gateway) send(f frame) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	g.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return g.conn.WriteJSON(f)
}

func frameOf(op string, d any) frame {
	raw, _ := json.Marshal(d)
	return frame{Op: op, D: raw}
}
