package service

import (
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/logger"
	"coder_edu_lockdown/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	shardCount     = 32
)

// 上下行消息类型
const (
	MsgSignal            = "SIGNAL"
	MsgFullscreenResult  = "FULLSCREEN_RESULT"
	MsgFullscreenRequest = "FULLSCREEN_REQUEST"
	MsgFullscreenExit    = "FULLSCREEN_EXIT"
	MsgNotice            = "NOTICE"
)

var errFullscreenDenied = errors.New("fullscreen request denied")

var (
	// 内存复用 (sync.Pool)
	inboundPool = sync.Pool{
		New: func() interface{} {
			return &inboundMessage{}
		},
	}
)

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fullscreenRequest struct {
	RequestID string `json:"requestId"`
}

type fullscreenResult struct {
	RequestID string `json:"requestId"`
	Granted   bool   `json:"granted"`
	Reason    string `json:"reason,omitempty"`
}

type Client struct {
	Hub     *LockdownHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Limiter *rate.Limiter // 限流器
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		msg := inboundPool.Get().(*inboundMessage)
		msg.Type, msg.Data = "", nil
		if err := json.Unmarshal(message, msg); err != nil {
			inboundPool.Put(msg)
			continue
		}
		monitoring.WSMessageCounter.WithLabelValues(msg.Type, "in").Inc()

		switch msg.Type {
		case MsgSignal:
			var sig model.Signal
			if err := json.Unmarshal(msg.Data, &sig); err != nil || sig.Kind == "" {
				break
			}
			// 只限制被拦截事件的频率，违规信号总是送达
			if sig.Kind.Blocked() && !c.Limiter.Allow() {
				break
			}
			if sig.ObservedAt.IsZero() {
				sig.ObservedAt = time.Now()
			}
			c.Hub.dispatchSignal(c.UserID, sig)
		case MsgFullscreenResult:
			var res fullscreenResult
			if err := json.Unmarshal(msg.Data, &res); err != nil || res.RequestID == "" {
				break
			}
			c.Hub.resolveFullscreen(c.UserID, res)
		}
		inboundPool.Put(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每条消息单独成帧，客户端按帧解析 JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]*Client
	mu      sync.RWMutex
}

// LockdownHub 每个学生一条连接，同时按学生提供 Environment
type LockdownHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once

	fullscreenTimeout time.Duration
	upgrader          websocket.Upgrader

	handlersMu sync.RWMutex
	handlers   map[uint]map[uint64]SignalHandler
	nextSubID  atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]pendingFullscreen
}

// pendingFullscreen 只接受被询问学生自己连接上报的结果
type pendingFullscreen struct {
	userID uint
	wait   chan fullscreenResult
}

// NewLockdownHub checkOrigin 为 nil 时不校验 Origin
func NewLockdownHub(fullscreenTimeout time.Duration, checkOrigin func(r *http.Request) bool) *LockdownHub {
	if fullscreenTimeout <= 0 {
		fullscreenTimeout = 10 * time.Second
	}
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	h := &LockdownHub{
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		quit:              make(chan struct{}),
		fullscreenTimeout: fullscreenTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		handlers: make(map[uint]map[uint64]SignalHandler),
		pending:  make(map[string]pendingFullscreen),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[uint]*Client),
		}
	}
	return h
}

func (h *LockdownHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

func (h *LockdownHub) Run() {
	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			// 同一学生重复连接时以新连接为准
			if old, ok := s.clients[client.UserID]; ok {
				close(old.Send)
			} else {
				monitoring.LockdownClients.Inc()
			}
			s.clients[client.UserID] = client
			s.mu.Unlock()

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if cur, ok := s.clients[client.UserID]; ok && cur == client {
				delete(s.clients, client.UserID)
				close(client.Send)
				monitoring.LockdownClients.Dec()
			}
			s.mu.Unlock()

		case <-h.quit:
			return
		}
	}
}

// 关闭所有连接
func (h *LockdownHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		closed := 0
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.Lock()
			for userID, client := range s.clients {
				close(client.Send)
				delete(s.clients, userID)
				closed++
			}
			s.mu.Unlock()
		}
		monitoring.LockdownClients.Set(0)
		logger.Log.Info("LockdownHub stopped", zap.Int("closedConnections", closed))
	})
}

func (h *LockdownHub) IsConnected(userID uint) bool {
	s := h.getShard(userID)
	s.mu.RLock()
	_, ok := s.clients[userID]
	s.mu.RUnlock()
	return ok
}

// Push 下发一条消息，学生不在线或发送队列已满时丢弃
func (h *LockdownHub) Push(userID uint, msg WSMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[userID]
	if !ok {
		return false
	}
	select {
	case client.Send <- payload:
		monitoring.WSMessageCounter.WithLabelValues(msg.Type, "out").Inc()
		return true
	default:
		return false
	}
}

// EnvironmentFor 返回学生对应的 Environment，断线重连后监听仍然有效
func (h *LockdownHub) EnvironmentFor(userID uint) Environment {
	return &learnerEnv{hub: h, userID: userID}
}

func (h *LockdownHub) subscribe(userID uint, handler SignalHandler) Subscription {
	id := h.nextSubID.Add(1)
	h.handlersMu.Lock()
	if h.handlers[userID] == nil {
		h.handlers[userID] = make(map[uint64]SignalHandler)
	}
	h.handlers[userID][id] = handler
	h.handlersMu.Unlock()

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			h.handlersMu.Lock()
			delete(h.handlers[userID], id)
			if len(h.handlers[userID]) == 0 {
				delete(h.handlers, userID)
			}
			h.handlersMu.Unlock()
		})
	})
}

// dispatchSignal 在锁外调用处理函数，处理函数可以在内部取消订阅
func (h *LockdownHub) dispatchSignal(userID uint, sig model.Signal) {
	h.handlersMu.RLock()
	handlers := make([]SignalHandler, 0, len(h.handlers[userID]))
	for _, fn := range h.handlers[userID] {
		handlers = append(handlers, fn)
	}
	h.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(sig)
	}
}

func (h *LockdownHub) requestFullscreen(ctx context.Context, userID uint) error {
	if !h.IsConnected(userID) {
		return util.ErrEnvironmentOffline
	}

	reqID := uuid.NewString()
	wait := make(chan fullscreenResult, 1)
	h.pendingMu.Lock()
	h.pending[reqID] = pendingFullscreen{userID: userID, wait: wait}
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, reqID)
		h.pendingMu.Unlock()
	}()

	if !h.Push(userID, WSMessage{Type: MsgFullscreenRequest, Data: fullscreenRequest{RequestID: reqID}}) {
		return util.ErrEnvironmentOffline
	}

	timer := time.NewTimer(h.fullscreenTimeout)
	defer timer.Stop()

	select {
	case res := <-wait:
		if !res.Granted {
			if res.Reason != "" {
				return fmt.Errorf("%w: %s", errFullscreenDenied, res.Reason)
			}
			return errFullscreenDenied
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("fullscreen request timed out after %s", h.fullscreenTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return util.ErrEnvironmentOffline
	}
}

func (h *LockdownHub) resolveFullscreen(userID uint, res fullscreenResult) {
	h.pendingMu.Lock()
	p, ok := h.pending[res.RequestID]
	h.pendingMu.Unlock()
	if !ok {
		return
	}
	if p.userID != userID {
		logger.Log.Warn("Fullscreen result from another learner ignored",
			zap.Uint("expected", p.userID), zap.Uint("from", userID), zap.String("requestId", res.RequestID))
		return
	}
	select {
	case p.wait <- res:
	default:
	}
}

type learnerEnv struct {
	hub    *LockdownHub
	userID uint
}

func (e *learnerEnv) RequestFullscreen(ctx context.Context) error {
	return e.hub.requestFullscreen(ctx, e.userID)
}

func (e *learnerEnv) ExitFullscreen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.hub.Push(e.userID, WSMessage{Type: MsgFullscreenExit}) {
		return util.ErrEnvironmentOffline
	}
	return nil
}

func (e *learnerEnv) Subscribe(handler SignalHandler) Subscription {
	return e.hub.subscribe(e.userID, handler)
}

func (e *learnerEnv) Notify(notice model.Notice) {
	if !e.hub.Push(e.userID, WSMessage{Type: MsgNotice, Data: notice}) {
		logger.Log.Debug("notice dropped", zap.Uint("userId", e.userID), zap.String("kind", string(notice.Kind)))
	}
}

func ServeLockdown(hub *LockdownHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Limiter: rate.NewLimiter(rate.Limit(20), 40), // 每秒20条，允许突发40条
	}
	select {
	case hub.register <- client:
	case <-hub.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
