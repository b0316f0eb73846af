package service

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc 推进一次倒计时，返回剩余秒数；ok 为 false 表示会话已不在作答状态
type TickFunc func(now time.Time) (remaining int, ok bool)

// CountdownTimer 只负责调度：每个周期调用一次 tick，剩余为 0 时调用一次 expire
type CountdownTimer struct {
	clock    Clock
	interval time.Duration
	tick     TickFunc
	expire   func()

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewCountdownTimer(clock Clock, interval time.Duration, tick TickFunc, expire func()) *CountdownTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &CountdownTimer{
		clock:    clock,
		interval: interval,
		tick:     tick,
		expire:   expire,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 只能生效一次；Stop 之后调用无效
func (t *CountdownTimer) Start() {
	if t.stopped() || !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.run()
}

// Stop 同步返回：返回后不会再有 tick 或 expire 被调度。可在 expire 回调中调用。
func (t *CountdownTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	if t.started.Load() {
		<-t.done
	}
}

func (t *CountdownTimer) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

func (t *CountdownTimer) run() {
	if t.loop() {
		t.expire()
	}
}

// loop 在调用 expire 之前关闭 done，避免 expire 内部 Stop 时自锁
func (t *CountdownTimer) loop() bool {
	defer close(t.done)

	if t.stopped() {
		return false
	}
	// 已过截止时间的会话不等第一个周期
	remaining, ok := t.tick(t.clock.Now())
	if !ok {
		return false
	}
	if remaining == 0 {
		return true
	}

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return false
		case now := <-ticker.C():
			if t.stopped() {
				return false
			}
			remaining, ok := t.tick(now)
			if !ok {
				return false
			}
			if remaining == 0 {
				return true
			}
		}
	}
}

// secondsUntil 向上取整，截止时间已过返回 0
func secondsUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
