package service

import (
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/model"
	"context"
	"sync"
	"time"
)

// fakeClock 手动推进的时钟；Advance 会把时间投递给所有未停止的 ticker
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	created chan struct{}
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan struct{}, 16)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	select {
	case c.created <- struct{}{}:
	default:
	}
	return t
}

// Advance 每个 ticker 的发送都是同步的，返回时上一次 tick 已被接收
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.c <- now:
		case <-t.stopped:
		}
	}
}

func (c *fakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) waitTicker(timeout time.Duration) bool {
	select {
	case <-c.created:
		return true
	case <-time.After(timeout):
		return false
	}
}

type fakeTicker struct {
	c        chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// fakeEnv 记录全屏请求与提示，Emit 模拟浏览器上报信号
type fakeEnv struct {
	mu             sync.Mutex
	fullscreenErr  error
	fullscreenGate chan struct{}
	fullscreenSeen chan struct{}
	fullscreenReqs int
	exitCalls      int
	handlers       map[int]SignalHandler
	nextID         int
	notices        []model.Notice
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{handlers: make(map[int]SignalHandler), fullscreenSeen: make(chan struct{}, 4)}
}

func (e *fakeEnv) RequestFullscreen(ctx context.Context) error {
	e.mu.Lock()
	e.fullscreenReqs++
	gate := e.fullscreenGate
	err := e.fullscreenErr
	e.mu.Unlock()

	select {
	case e.fullscreenSeen <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (e *fakeEnv) ExitFullscreen(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exitCalls++
	return nil
}

func (e *fakeEnv) Subscribe(handler SignalHandler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	return SubscriptionFunc(func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	})
}

func (e *fakeEnv) Notify(notice model.Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notices = append(e.notices, notice)
}

func (e *fakeEnv) Emit(sig model.Signal) {
	e.mu.Lock()
	handlers := make([]SignalHandler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()
	for _, h := range handlers {
		h(sig)
	}
}

func (e *fakeEnv) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

func (e *fakeEnv) ExitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCalls
}

func (e *fakeEnv) FullscreenRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreenReqs
}

func (e *fakeEnv) Notices(kind model.NoticeKind) []model.Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.Notice
	for _, n := range e.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type submitCall struct {
	quizID  string
	answers []model.SubmittedAnswer
}

// fakeSubmitter 按顺序返回预设结果，最后一个结果重复使用
type fakeSubmitter struct {
	mu        sync.Mutex
	calls     []submitCall
	responses []submitResponse
	gate      chan struct{}
	entered   chan struct{}
}

type submitResponse struct {
	result model.SubmitResult
	err    error
}

func newFakeSubmitter(responses ...submitResponse) *fakeSubmitter {
	if len(responses) == 0 {
		responses = []submitResponse{{result: model.SubmitResult{Code: 200, Message: "ok"}}}
	}
	return &fakeSubmitter{responses: responses, entered: make(chan struct{}, 16)}
}

func (f *fakeSubmitter) SubmitQuiz(ctx context.Context, quizID string, answers []model.SubmittedAnswer) (model.SubmitResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submitCall{quizID: quizID, answers: answers})
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	resp := f.responses[idx]
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.SubmitResult{}, ctx.Err()
		}
	}
	return resp.result, resp.err
}

func (f *fakeSubmitter) Calls() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall(nil), f.calls...)
}

func testSettings() config.LockdownConfig {
	return config.LockdownConfig{
		FallbackBudgetSeconds:    1800,
		TickIntervalMillis:       1000,
		ResizeThresholdPx:        160,
		FullscreenTimeoutSeconds: 1,
		SubmitTimeoutSeconds:     5,
		MaxSubmitAttempts:        3,
		SessionLockTTLMinutes:    60,
		BlockedKeyCombos:         []string{"ctrl+c", "f12"},
	}
}

func sampleQuiz() *model.QuizDefinition {
	return &model.QuizDefinition{
		ID:    "quiz-1",
		Title: "Pointers",
		Questions: []model.Question{
			{ID: "q1", Prompt: "What does & return?", Answers: []model.Answer{{ID: "q1a1", Text: "address"}, {ID: "q1a2", Text: "value"}}},
			{ID: "q2", Prompt: "Size of int*?", Answers: []model.Answer{{ID: "q2a1", Text: "4"}, {ID: "q2a2", Text: "8"}}},
			{ID: "q3", Prompt: "NULL is?", Answers: []model.Answer{{ID: "q3a1", Text: "0"}, {ID: "q3a2", Text: "1"}}},
		},
	}
}
