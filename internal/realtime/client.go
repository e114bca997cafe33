// Package realtime maintains the live push channel: an auto-reconnecting
// socket.io connection authenticated with the current access token, feeding
// server events into the notification center.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"esnafpanel-core/internal/notify"
	"esnafpanel-core/internal/socketio"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrNotAuthenticated means Connect was called without a valid access
// token; the channel only opens for an authenticated session.
var ErrNotAuthenticated = errors.New("no access token, channel stays closed")

// Subscription is a standing feed interest: a topic plus an optional
// scoping id (e.g. one specific invoice).
type Subscription struct {
	Topic string
	ID    string
}

const (
	TopicNotifications = "notifications"
	TopicInvoices      = "invoices"
	TopicPayments      = "payments"
)

const (
	defaultMaxAttempts    = 8
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	handshakeTimeout      = 10 * time.Second
	writeTimeout          = 10 * time.Second
)

type Options struct {
	// URL is the websocket endpoint, e.g.
	// ws://localhost:3000/socket.io/?EIO=4&transport=websocket.
	URL string
	// Token returns the current access token; it is read fresh on every
	// (re)connect so a re-login picks up the new credential.
	Token func() string
	// Auth payload extras beyond the token can be added later if the
	// backend grows them.
	Center *notify.Center
	Logger *zap.Logger

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnStateChange observes transitions; called outside the client lock.
	OnStateChange func(State)

	Dialer *websocket.Dialer
}

type Client struct {
	url    string
	token  func() string
	center *notify.Center
	log    *zap.Logger
	dialer *websocket.Dialer

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	onStateChange  func(State)

	mu           sync.Mutex
	state        State
	subs         []Subscription
	conn         *websocket.Conn
	done         chan struct{}
	running      bool
	serverStatus string

	sendMu sync.Mutex

	ackMu      sync.Mutex
	nextAckID  int
	pendingAck map[int]chan []json.RawMessage
}

func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	return &Client{
		url:            opts.URL,
		token:          opts.Token,
		center:         opts.Center,
		log:            opts.Logger,
		dialer:         opts.Dialer,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		onStateChange:  opts.OnStateChange,
		pendingAck:     make(map[int]chan []json.RawMessage),
	}
}

// Connect opens the channel. It requires an access token and is a no-op
// while the channel is already running. A client that ended in
// StateFailed can be connected again (the manual reconnect trigger).
func (c *Client) Connect() error {
	if c.token() == "" {
		return ErrNotAuthenticated
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.setState(StateConnecting)
	go c.run(done)
	return nil
}

// Close tears the channel down immediately and unconditionally; it is
// called on logout and on shutdown.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

// Subscribe records a standing subscription and, if connected, sends it
// right away. Subscriptions are re-sent on every reconnect; the transport
// is never assumed to remember them.
func (c *Client) Subscribe(sub Subscription) {
	c.mu.Lock()
	for _, existing := range c.subs {
		if existing == sub {
			c.mu.Unlock()
			return
		}
	}
	c.subs = append(c.subs, sub)
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		c.emitSubscribe(sub)
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerStatus is the latest connection:status payload; the UI shows it
// as the connectivity indicator.
func (c *Client) ServerStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverStatus
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onStateChange
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (c *Client) run(done chan struct{}) {
	attempts := 0
	for {
		select {
		case <-done:
			return
		default:
		}

		token := c.token()
		if token == "" {
			// Logged out while (re)connecting.
			c.Close()
			return
		}

		conn, err := c.connectOnce(token)
		if err == nil {
			attempts = 0
			c.mu.Lock()
			c.conn = conn
			subs := make([]Subscription, len(c.subs))
			copy(subs, c.subs)
			c.mu.Unlock()
			c.setState(StateConnected)

			// Standing subscriptions go out before any inbound event is
			// processed.
			for _, sub := range subs {
				c.emitSubscribe(sub)
			}

			c.readLoop(conn, done)

			select {
			case <-done:
				return
			default:
			}
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.log.Info("realtime channel dropped, reconnecting")
		} else {
			c.log.Warn("realtime connect failed", zap.Error(err))
		}

		attempts++
		if attempts > c.maxAttempts {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			c.setState(StateFailed)
			c.log.Warn("realtime reconnect budget exhausted", zap.Int("attempts", attempts-1))
			return
		}
		c.setState(StateReconnecting)

		select {
		case <-done:
			return
		case <-time.After(c.backoff(attempts)):
		}
	}
}

// backoff doubles from the initial delay and is capped.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

// connectOnce dials and completes the engine.io open plus the socket.io
// connect-with-auth handshake.
func (c *Client) connectOnce(token string) (*websocket.Conn, error) {
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(handshakeTimeout)
	_ = conn.SetReadDeadline(deadline)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := socketio.ParseOpenPacket(string(raw)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	connect, err := socketio.BuildConnectPacket("/", map[string]string{"token": token})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := writeFrame(conn, socketio.Frame(connect)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	// Wait for the connect ack, answering keepalive pings meanwhile.
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		msg := string(raw)
		if msg == "" {
			continue
		}
		if socketio.EnginePacketType(msg[0]) == socketio.EnginePing {
			_ = writeFrame(conn, string(socketio.EnginePong))
			continue
		}
		if socketio.EnginePacketType(msg[0]) != socketio.EngineMessage || len(msg) < 2 {
			continue
		}
		payload := msg[1:]
		if socketio.SocketPacketType(payload[0]) == socketio.SocketConnect {
			_ = conn.SetReadDeadline(time.Time{})
			return conn, nil
		}
		if pkt, err := socketio.ParseEventPacket(payload); err == nil && pkt.Event == "error" {
			_ = conn.Close()
			return nil, errors.New("handshake rejected: " + firstArgMessage(pkt.Args))
		}
	}

	_ = conn.Close()
	return nil, errors.New("handshake timed out")
}

func firstArgMessage(args []json.RawMessage) string {
	if len(args) == 0 {
		return "no reason given"
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args[0], &body); err != nil || body.Message == "" {
		return string(args[0])
	}
	return body.Message
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return
		}
		select {
		case <-done:
			_ = conn.Close()
			return
		default:
		}
		c.handleFrame(conn, string(raw))
	}
}

func (c *Client) handleFrame(conn *websocket.Conn, msg string) {
	if msg == "" {
		return
	}
	switch socketio.EnginePacketType(msg[0]) {
	case socketio.EnginePing:
		_ = writeFrame(conn, string(socketio.EnginePong))
	case socketio.EngineClose:
		_ = conn.Close()
	case socketio.EngineMessage:
		c.handleSocketPayload(msg[1:])
	}
}

func (c *Client) handleSocketPayload(payload string) {
	if payload == "" {
		return
	}
	switch socketio.SocketPacketType(payload[0]) {
	case socketio.SocketEvent:
		pkt, err := socketio.ParseEventPacket(payload)
		if err != nil {
			return
		}
		c.handleEvent(pkt)
	case socketio.SocketAck:
		ack, err := socketio.ParseAckPacket(payload)
		if err != nil {
			return
		}
		c.resolveAck(ack.ID, ack.Args)
	}
}

func (c *Client) handleEvent(pkt socketio.EventPacket) {
	ev, ok := DecodeEvent(pkt.Event, pkt.Args)
	if !ok {
		// Unknown topics are ignored, not errors.
		return
	}

	if status, isStatus := ev.(*ConnectionStatusEvent); isStatus {
		c.mu.Lock()
		c.serverStatus = status.Status
		c.mu.Unlock()
		return
	}
	Dispatch(ev, c.center)
}

// emitSubscribe sends one subscribe:<topic> event, with the scoping id
// when present.
func (c *Client) emitSubscribe(sub Subscription) {
	var payload string
	var err error
	if sub.ID != "" {
		payload, err = socketio.BuildEventPacket("/", nil, "subscribe:"+sub.Topic, map[string]string{"id": sub.ID})
	} else {
		payload, err = socketio.BuildEventPacket("/", nil, "subscribe:"+sub.Topic)
	}
	if err != nil {
		return
	}
	c.writeCurrent(socketio.Frame(payload))
}

// Ping emits the application-level ping and waits for its ack.
func (c *Client) Ping(timeout time.Duration) error {
	c.ackMu.Lock()
	c.nextAckID++
	id := c.nextAckID
	ch := make(chan []json.RawMessage, 1)
	c.pendingAck[id] = ch
	c.ackMu.Unlock()

	dropPending := func() {
		c.ackMu.Lock()
		delete(c.pendingAck, id)
		c.ackMu.Unlock()
	}

	payload, err := socketio.BuildEventPacket("/", &id, "ping")
	if err != nil {
		dropPending()
		return err
	}
	if err := c.writeCurrent(socketio.Frame(payload)); err != nil {
		dropPending()
		return err
	}

	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		dropPending()
		return errors.New("ping ack timed out")
	}
}

func (c *Client) resolveAck(id int, args []json.RawMessage) {
	c.ackMu.Lock()
	ch := c.pendingAck[id]
	delete(c.pendingAck, id)
	c.ackMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- args:
	default:
	}
}

func (c *Client) writeCurrent(frame string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	return c.write(conn, frame)
}

func (c *Client) write(conn *websocket.Conn, frame string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func writeFrame(conn *websocket.Conn, frame string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}
