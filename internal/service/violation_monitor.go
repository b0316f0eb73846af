package service

import (
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/pkg/monitoring"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ViolationMonitor 作答期间监听环境信号，每个会话最多上报一次违规
type ViolationMonitor struct {
	resizeThreshold int
	onViolation     func(model.Signal)
	log             *zap.Logger

	fired    atomic.Bool
	disarmed atomic.Bool
	blocked  atomic.Int64

	mu  sync.Mutex
	sub Subscription
}

func NewViolationMonitor(resizeThreshold int, log *zap.Logger, onViolation func(model.Signal)) *ViolationMonitor {
	return &ViolationMonitor{
		resizeThreshold: resizeThreshold,
		onViolation:     onViolation,
		log:             log,
	}
}

// Arm 注册监听；Disarm 之后不再注册
func (m *ViolationMonitor) Arm(env Environment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disarmed.Load() || m.sub != nil {
		return
	}
	m.sub = env.Subscribe(m.handle)
}

// Disarm 注销全部监听，所有退出路径都会调用，可重复调用
func (m *ViolationMonitor) Disarm() {
	m.disarmed.Store(true)
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (m *ViolationMonitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

func (m *ViolationMonitor) Fired() bool {
	return m.fired.Load()
}

func (m *ViolationMonitor) BlockedCount() int {
	return int(m.blocked.Load())
}

func (m *ViolationMonitor) handle(sig model.Signal) {
	if m.disarmed.Load() {
		return
	}

	if sig.Kind.Blocked() {
		m.blocked.Add(1)
		monitoring.BlockedEventCounter.WithLabelValues(string(sig.Kind)).Inc()
		m.log.Debug("blocked lockdown event", zap.String("signal", string(sig.Kind)), zap.String("combo", sig.Combo))
		return
	}

	if !m.isViolation(sig) {
		return
	}

	// 先置位再做任何异步操作，同时到达的第二个信号在这里被丢弃
	if !m.fired.CompareAndSwap(false, true) {
		return
	}

	monitoring.ViolationCounter.WithLabelValues(string(sig.Kind)).Inc()
	m.log.Warn("lockdown violation detected", zap.String("signal", string(sig.Kind)))
	m.onViolation(sig)
}

func (m *ViolationMonitor) isViolation(sig model.Signal) bool {
	switch sig.Kind {
	case model.SignalVisibilityHidden, model.SignalFullscreenExit, model.SignalWindowBlur:
		return true
	case model.SignalResize:
		// 外框与可视区差值过大，多半是打开了开发者工具
		return sig.Viewport != nil && sig.Viewport.Delta() > m.resizeThreshold
	}
	return false
}
