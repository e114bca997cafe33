package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"esnafpanel-core/internal/auth"
	"esnafpanel-core/internal/socketio"
)

const (
	maxPayload   int64 = 1000000
	writeTimeout       = 10 * time.Second
	pingInterval       = 25 * time.Second
	pingTimeout        = 20 * time.Second
)

// SocketServer is the push endpoint: it authenticates connections with the
// access token from the connect payload and routes subscribe events into
// topic rooms.
type SocketServer struct {
	tokenConfig auth.TokenConfig
	rooms       *Rooms
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

func NewSocketServer(tokenConfig auth.TokenConfig, log *zap.Logger) *SocketServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SocketServer{
		tokenConfig: tokenConfig,
		rooms:       NewRooms(),
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *SocketServer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serve(c.Writer, c.Request)
	}
}

func (s *SocketServer) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	defer func() {
		s.rooms.LeaveAll(c)
		c.Close()
	}()

	open := socketio.OpenPayload{
		SID:          c.sid,
		Upgrades:     []string{},
		PingInterval: int(pingInterval / time.Millisecond),
		PingTimeout:  int(pingTimeout / time.Millisecond),
		MaxPayload:   maxPayload,
	}
	openBytes, _ := json.Marshal(open)
	_ = c.Write(string(socketio.EngineOpen) + string(openBytes))

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleFrame(c, msg)
	})
}

func (s *SocketServer) handleFrame(c *conn, msg string) {
	if msg == "" {
		return
	}
	switch socketio.EnginePacketType(msg[0]) {
	case socketio.EnginePong:
		c.markPong()
	case socketio.EngineMessage:
		s.handleSocketPayload(c, msg[1:])
	case socketio.EngineClose:
		c.Close()
	}
}

type connectAuth struct {
	Token string `json:"token"`
}

func (s *SocketServer) handleSocketPayload(c *conn, payload string) {
	if payload == "" {
		return
	}
	switch socketio.SocketPacketType(payload[0]) {
	case socketio.SocketConnect:
		s.handleConnect(c, payload)
	case socketio.SocketEvent:
		s.handleEvent(c, payload)
	}
}

func (s *SocketServer) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}

	var authObj connectAuth
	if err := socketio.ParseConnectAuth(payload, &authObj); err != nil {
		_ = c.writeSocketError("Eksik kimlik bilgisi")
		c.Close()
		return
	}
	if authObj.Token == "" {
		_ = c.writeSocketError("Eksik token")
		c.Close()
		return
	}
	claims, err := auth.VerifyToken(authObj.Token, auth.TokenTypeAccess, s.tokenConfig)
	if err != nil || claims.UserID == "" {
		_ = c.writeSocketError("Geçersiz oturum")
		c.Close()
		return
	}

	c.userID = claims.UserID
	c.connected.Store(true)

	connect, _ := socketio.BuildConnectPacket("/", map[string]string{"sid": c.sid})
	_ = c.Write(socketio.Frame(connect))

	s.emitTo(c, "connection:status", gin.H{"status": "online"})
	s.log.Debug("socket connected", zap.String("user", c.userID))
}

func (s *SocketServer) handleEvent(c *conn, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := socketio.ParseEventPacket(payload)
	if err != nil {
		return
	}

	switch pkt.Event {
	case "ping":
		if pkt.ID != nil {
			ack, err := socketio.BuildAckPacket(pkt.Namespace, *pkt.ID)
			if err == nil {
				_ = c.Write(socketio.Frame(ack))
			}
		}

	case "subscribe:notifications":
		s.rooms.Join(notificationsRoom(c.userID), c)

	case "subscribe:invoices":
		s.rooms.Join(invoicesRoom(c.userID), c)
		if id := scopeID(pkt.Args); id != "" {
			s.rooms.Join(invoiceRoom(id), c)
		}

	case "subscribe:payments":
		s.rooms.Join(paymentsRoom(c.userID), c)
		if id := scopeID(pkt.Args); id != "" {
			s.rooms.Join(paymentRoom(id), c)
		}

	default:
		// Unknown client events are dropped silently.
	}
}

func scopeID(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args[0], &body); err != nil {
		return ""
	}
	return body.ID
}

func notificationsRoom(userID string) string { return "notifications:" + userID }
func invoicesRoom(userID string) string      { return "invoices:" + userID }
func paymentsRoom(userID string) string      { return "payments:" + userID }
func invoiceRoom(invoiceID string) string    { return "invoice:" + invoiceID }
func paymentRoom(paymentID string) string    { return "payment:" + paymentID }

func (s *SocketServer) emitTo(c *conn, event string, payload any) {
	frame, err := socketio.BuildEventPacket("/", nil, event, payload)
	if err != nil {
		return
	}
	_ = c.Write(socketio.Frame(frame))
}

func (s *SocketServer) broadcast(topic, event string, payload any) {
	frame, err := socketio.BuildEventPacket("/", nil, event, payload)
	if err != nil {
		return
	}
	s.rooms.Broadcast(topic, socketio.Frame(frame))
}

// PublishNotification pushes a fully-formed alert to one user's feed.
func (s *SocketServer) PublishNotification(userID, typ, title, message, actionURL string) {
	s.broadcast(notificationsRoom(userID), "notification:new", gin.H{
		"type":      typ,
		"title":     title,
		"message":   message,
		"actionUrl": actionURL,
	})
}

func (s *SocketServer) PublishInvoiceCreated(userID, invoiceID, number, customer string, amount float64) {
	payload := gin.H{"invoiceId": invoiceID, "number": number, "customer": customer, "amount": amount}
	s.broadcast(invoicesRoom(userID), "invoice:created", payload)
}

func (s *SocketServer) PublishInvoiceUpdate(userID, invoiceID, number, status string) {
	payload := gin.H{"invoiceId": invoiceID, "number": number, "status": status}
	s.broadcast(invoicesRoom(userID), "invoice:update", payload)
	s.broadcast(invoiceRoom(invoiceID), "invoice:update", payload)
}

func (s *SocketServer) PublishPaymentReceived(userID, paymentID, invoiceID string, amount float64, currency string) {
	payload := gin.H{"paymentId": paymentID, "invoiceId": invoiceID, "amount": amount, "currency": currency}
	s.broadcast(paymentsRoom(userID), "payment:received", payload)
	s.broadcast(paymentRoom(paymentID), "payment:received", payload)
}

func (s *SocketServer) PublishPaymentUpdate(userID, paymentID, status string) {
	payload := gin.H{"paymentId": paymentID, "status": status}
	s.broadcast(paymentsRoom(userID), "payment:update", payload)
	s.broadcast(paymentRoom(paymentID), "payment:update", payload)
}

func (s *SocketServer) PublishTaxReminder(userID, name, dueDate string, daysLeft int) {
	s.broadcast(notificationsRoom(userID), "tax:reminder", gin.H{
		"name": name, "dueDate": dueDate, "daysLeft": daysLeft,
	})
}

func (s *SocketServer) PublishGIBStatus(userID, service, status, detail string) {
	s.broadcast(notificationsRoom(userID), "gib:status", gin.H{
		"service": service, "status": status, "detail": detail,
	})
}

// DisconnectUser force-closes every connection in the user's notification
// room; tests use it to simulate transport drops.
func (s *SocketServer) DisconnectUser(userID string) {
	s.rooms.mu.RLock()
	set := s.rooms.members[notificationsRoom(userID)]
	writers := make([]RoomWriter, 0, len(set))
	for w := range set {
		writers = append(writers, w)
	}
	s.rooms.mu.RUnlock()

	for _, w := range writers {
		_ = w.Close()
		s.rooms.LeaveAll(w)
	}
}

type conn struct {
	ws  *websocket.Conn
	sid string

	connected atomic.Bool
	userID    string

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(pingInterval),
	}
}

func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.ws.Close()
}

func (c *conn) Write(frame string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > pingTimeout {
			c.pingMu.Unlock()
			c.Close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(pingInterval)
			c.pingMu.Unlock()
			_ = c.Write(string(socketio.EnginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}

func (c *conn) writeSocketError(msg string) error {
	frame, err := socketio.BuildEventPacket("/", nil, "error", gin.H{"message": msg})
	if err != nil {
		return err
	}
	return c.Write(socketio.Frame(frame))
}
