package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bidhouse/auction"
	"bidhouse/metrics"
	"bidhouse/service"
	"bidhouse/storage"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before it is presumed
	// gone; pings go out at pingPeriod to keep healthy clients inside it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. Clients have nothing to say; the
	// hub only pushes.
	maxMessageSize = 512

	// sendChannelSize is the per-client outbound buffer. A client that
	// falls this far behind is disconnected rather than allowed to stall
	// the hub.
	sendChannelSize = 256

	// broadcastTimeout bounds how long a producer waits on a busy hub
	// before dropping the event.
	broadcastTimeout = time.Second
)

var newline = []byte{'\n'}

// client is one websocket connection with its outbound queue.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the set of connected websocket clients and fans events out to
// them. All map access happens on the run loop goroutine; producers talk to
// it through channels only.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	count  atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.SugaredLogger
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Start launches the hub loop. The loop exits when ctx is cancelled or Stop
// is called, closing every connected client on the way out.
func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				c.conn.Close()
			}
			h.setCount(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount(len(h.clients))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow client: cut it loose instead of stalling
					// everyone else.
					delete(h.clients, c)
					close(c.send)
					go c.conn.Close()
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

func (h *Hub) setCount(n int) {
	h.count.Store(int64(n))
	metrics.WebsocketClients.Set(float64(n))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Stop shuts the hub down and waits for the loop to finish. Safe to call
// without Start.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

// Broadcast fans an event out to every connected client. Implements
// service.Broadcaster. Events are dropped, with a warning, rather than ever
// blocking the caller longer than broadcastTimeout.
func (h *Hub) Broadcast(event service.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorw("Failed to encode websocket event", "type", event.Type, "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.done:
	case <-time.After(broadcastTimeout):
		h.logger.Warnw("Websocket broadcast dropped, hub busy", "type", event.Type)
	}
}

var _ service.Broadcaster = (*Hub)(nil)

// readPump discards inbound frames while using them to detect disconnects
// and keep the pong deadline fresh.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugw("Websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Queued messages are coalesced into one frame, newline
// separated.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			for i := len(c.send); i > 0; i-- {
				_, _ = w.Write(newline)
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkWSOrigin applies the CORS allowlist to websocket handshakes, which
// browsers never subject to a CORS preflight. Requests without an Origin
// header (non-browser clients) are allowed.
func (a *API) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.config.API.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// serveWS upgrades the connection and hands it to the hub.
//
//	@Summary		Websocket upgrade
//	@Description	Upgrades to a websocket that streams countdown ticks, accepted bids, and auction state changes
//	@Tags			operations
//	@Success		101	{string}	string	"Switching Protocols"
//	@Failure		403	{string}	string	"Origin not allowed"
//	@Router			/api/v1/ws [get]
func (a *API) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		a.logger.Warnw("Websocket upgrade failed", "error", err, "client_ip", a.clientIP(r))
		return
	}

	c := &client{hub: a.hub, conn: conn, send: make(chan []byte, sendChannelSize)}
	select {
	case a.hub.register <- c:
	case <-a.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	a.logger.Debugw("Websocket client connected", "client_ip", a.clientIP(r))
}

// BroadcastCountdowns pushes an auction:countdown event for every active
// auction at each tick. One chain reading and one storage query serve the
// whole tick; ticks with no connected clients cost nothing.
func (a *API) BroadcastCountdowns(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.hub.ClientCount() == 0 {
				continue
			}
			a.broadcastCountdownTick(ctx)
		}
	}
}

func (a *API) broadcastCountdownTick(ctx context.Context) {
	reading := a.clock.Now(ctx)

	active, _, err := a.service.ListAuctions(ctx, storage.AuctionFilters{
		Status: auction.StatusActive,
		Limit:  500,
	})
	if err != nil {
		a.logger.Warnw("Countdown broadcast skipped", "error", err)
		return
	}

	for i := range active {
		auc := &active[i]
		decision := auction.CanAcceptBids(auc.ActualEndTime, reading, auc.GraceSeconds)
		a.hub.Broadcast(service.Event{
			Type:      service.EventCountdown,
			AuctionID: auc.ID,
			Data: map[string]interface{}{
				"countdown":      auction.FormatDuration(auc.UserEndTime, auc.ActualEndTime, reading.Timestamp),
				"can_bid":        decision.CanBid,
				"time_remaining": decision.TimeRemaining,
				"is_accurate":    reading.Accurate,
			},
		})
	}
}
