package service

import (
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/logger"
	"coder_edu_lockdown/pkg/monitoring"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const exitFullscreenTimeout = 3 * time.Second

// UnansweredError 学生主动提交时仍有未作答题目，需要确认后再提交
type UnansweredError struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d of %d questions unanswered", e.Total-e.Answered, e.Total)
}

type SessionDeps struct {
	Env       Environment
	Submitter QuizSubmitter
	Clock     Clock
	Settings  config.LockdownConfig

	// OnViolation 在违规被接受后调用（审计用），不在会话锁内
	OnViolation func(s *QuizSession, sig model.Signal)
	// OnTerminal 在会话进入 Submitted/Aborted 后调用一次
	OnTerminal func(s *QuizSession)
}

// attemptState 会话内的作答状态，只由 QuizSession 在 mu 保护下修改
type attemptState struct {
	answers          map[string]string
	currentIndex     int
	startedAt        time.Time
	deadline         time.Time
	remainingSeconds int
}

// advance 按截止时间重新计算剩余秒数，只减不增，最小为 0
func (a *attemptState) advance(now time.Time) int {
	left := secondsUntil(a.deadline, now)
	if left < a.remainingSeconds {
		a.remainingSeconds = left
	}
	return a.remainingSeconds
}

// QuizSession 一次测验作答的完整生命周期：
// Idle → Acknowledged → Open → Submitting → Submitted | Aborted
type QuizSession struct {
	ID           string
	LearnerID    uint
	SharedQuizID string

	deps        SessionDeps
	log         *zap.Logger
	monitor     *ViolationMonitor
	coordinator *SubmissionCoordinator

	phase atomic.Int32

	mu        sync.Mutex
	quiz      *model.QuizDefinition
	attempt   attemptState
	starting  bool
	timer     *CountdownTimer
	trigger   model.Trigger
	pending   []model.SubmittedAnswer
	retryable bool
	lastErr   error

	doneOnce sync.Once
	done     chan struct{}
}

func NewQuizSession(learnerID uint, sharedQuizID string, deps SessionDeps) *QuizSession {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	s := &QuizSession{
		ID:           model.NewSessionID(),
		LearnerID:    learnerID,
		SharedQuizID: sharedQuizID,
		deps:         deps,
		done:         make(chan struct{}),
	}
	s.log = logger.Log.With(
		zap.String("sessionId", s.ID),
		zap.Uint("learnerId", learnerID),
		zap.String("sharedQuizId", sharedQuizID),
	)
	s.monitor = NewViolationMonitor(deps.Settings.ResizeThresholdPx, s.log, s.onViolation)
	s.coordinator = NewSubmissionCoordinator(deps.Submitter, deps.Settings.SubmitTimeout(), deps.Settings.MaxSubmitAttempts, s.log)
	return s
}

func (s *QuizSession) Phase() model.Phase {
	return model.Phase(s.phase.Load())
}

// Done 会话进入终态后关闭
func (s *QuizSession) Done() <-chan struct{} {
	return s.done
}

// Acknowledge 学生已阅读防作弊提示
func (s *QuizSession) Acknowledge() error {
	if !s.phase.CompareAndSwap(int32(model.PhaseIdle), int32(model.PhaseAcknowledged)) {
		return util.ErrInvalidTransition
	}
	s.log.Info("anti-cheat warning acknowledged")
	return nil
}

// StartSession 加载测验并请求全屏，全屏成功后进入作答状态。
// 请求全屏期间会话可能已被取消，返回后需要重新检查阶段。
func (s *QuizSession) StartSession(ctx context.Context, quiz *model.QuizDefinition, window model.QuizWindow) error {
	s.mu.Lock()
	if s.Phase() != model.PhaseAcknowledged || s.starting {
		s.mu.Unlock()
		return util.ErrInvalidTransition
	}
	if quiz == nil || len(quiz.Questions) == 0 {
		s.mu.Unlock()
		s.notify(model.NoticeQuizLoadFailed, "could not load quiz")
		return util.ErrQuizHasNoQuestions
	}

	now := s.deps.Clock.Now()
	if window.StartAt != nil && now.Before(*window.StartAt) {
		s.mu.Unlock()
		return util.ErrQuizNotYetAvailable
	}
	deadline := now.Add(s.deps.Settings.FallbackBudget())
	if window.EndAt != nil {
		deadline = *window.EndAt
	}

	s.quiz = quiz
	s.attempt = attemptState{
		answers:          make(map[string]string, len(quiz.Questions)),
		deadline:         deadline,
		remainingSeconds: secondsUntil(deadline, now),
	}
	s.starting = true
	s.mu.Unlock()

	err := s.deps.Env.RequestFullscreen(ctx)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		closed := s.Phase() != model.PhaseAcknowledged
		s.mu.Unlock()
		if closed {
			return util.ErrSessionClosed
		}
		s.log.Warn("fullscreen request failed", zap.Error(err))
		s.notify(model.NoticeSecureModeUnavailable, "could not enter secure mode")
		return fmt.Errorf("%w: %v", util.ErrSecureModeUnavailable, err)
	}
	if !s.phase.CompareAndSwap(int32(model.PhaseAcknowledged), int32(model.PhaseOpen)) {
		s.mu.Unlock()
		s.exitFullscreen()
		return util.ErrSessionClosed
	}

	openedAt := s.deps.Clock.Now()
	s.attempt.startedAt = openedAt
	s.attempt.advance(openedAt)
	s.timer = NewCountdownTimer(s.deps.Clock, s.deps.Settings.TickInterval(), s.tick, s.onTimeExpired)
	timer := s.timer
	remaining := s.attempt.remainingSeconds
	s.mu.Unlock()

	monitoring.SessionsOpened.Inc()
	s.log.Info("quiz session opened",
		zap.Int("questions", len(quiz.Questions)),
		zap.Int("remainingSeconds", remaining))

	// Arm/Start 在 Disarm/Stop 之后调用不会生效，中途被取消或提交也不会遗留监听
	s.monitor.Arm(s.deps.Env)
	s.deps.Env.Notify(model.Notice{
		Kind:             model.NoticeLockdown,
		SessionID:        s.ID,
		RemainingSeconds: &remaining,
		Policy:           s.lockdownPolicy(),
	})
	timer.Start()
	return nil
}

// SelectAnswer 同一题后选的答案覆盖之前的
func (s *QuizSession) SelectAnswer(questionID, answerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase() != model.PhaseOpen {
		return util.ErrInvalidTransition
	}
	idx := s.quiz.QuestionIndex(questionID)
	if idx < 0 {
		return util.ErrUnknownQuestion
	}
	if !s.quiz.Questions[idx].HasAnswer(answerID) {
		return util.ErrUnknownAnswer
	}
	s.attempt.answers[questionID] = answerID
	return nil
}

func (s *QuizSession) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase() != model.PhaseOpen {
		return util.ErrInvalidTransition
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		return util.ErrIndexOutOfRange
	}
	s.attempt.currentIndex = index
	return nil
}

// RequestSubmit 所有提交请求的唯一入口。
// 第一个在 Open 状态下到达的请求被接受，其余请求返回 (nil, nil)。
// 学生主动提交失败后会话停留在 Submitting，再次以 UserInitiated 调用即重试。
func (s *QuizSession) RequestSubmit(trigger model.Trigger, confirmed bool) (<-chan SubmitOutcome, error) {
	s.mu.Lock()
	switch s.Phase() {
	case model.PhaseOpen:
		if trigger == model.TriggerUserInitiated && !confirmed && len(s.attempt.answers) < len(s.quiz.Questions) {
			err := &UnansweredError{Answered: len(s.attempt.answers), Total: len(s.quiz.Questions)}
			s.mu.Unlock()
			return nil, err
		}
		if !s.phase.CompareAndSwap(int32(model.PhaseOpen), int32(model.PhaseSubmitting)) {
			s.mu.Unlock()
			return nil, nil
		}
		s.trigger = trigger
		s.pending = s.buildPayload(s.deps.Clock.Now())
		payload := s.pending
		s.mu.Unlock()

		s.log.Info("submission accepted", zap.String("trigger", string(trigger)), zap.Int("answers", len(payload)))
		s.leaveOpen()
		return s.dispatch(trigger, payload)

	case model.PhaseSubmitting:
		if trigger != model.TriggerUserInitiated || !s.retryable {
			s.mu.Unlock()
			return nil, nil
		}
		s.retryable = false
		payload := s.pending
		s.mu.Unlock()

		s.log.Info("retrying submission", zap.Int("attempt", s.coordinator.Attempts()+1))
		ch, err := s.dispatch(model.TriggerUserInitiated, payload)
		if err != nil {
			s.mu.Lock()
			s.retryable = true
			s.mu.Unlock()
		}
		return ch, err

	default:
		s.mu.Unlock()
		return nil, nil
	}
}

// CancelSession 只在提交前有效，不会访问平台接口
func (s *QuizSession) CancelSession() error {
	s.mu.Lock()
	from := s.Phase()
	if from != model.PhaseAcknowledged && from != model.PhaseOpen {
		s.mu.Unlock()
		return util.ErrInvalidTransition
	}
	if !s.phase.CompareAndSwap(int32(from), int32(model.PhaseAborted)) {
		s.mu.Unlock()
		return util.ErrInvalidTransition
	}
	s.mu.Unlock()

	// 返回前同步停止计时器并注销监听，排队中的 tick 或信号不会再触发提交
	s.leaveOpen()
	if from == model.PhaseOpen {
		s.exitFullscreen()
	}
	s.log.Info("quiz session cancelled", zap.String("from", from.String()))
	s.finish()
	return nil
}

func (s *QuizSession) Snapshot() model.AttemptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.AttemptSnapshot{
		SessionID:            s.ID,
		SharedQuizID:         s.SharedQuizID,
		Phase:                s.Phase(),
		Quiz:                 s.quiz,
		CurrentQuestionIndex: s.attempt.currentIndex,
		Answers:              make(map[string]string, len(s.attempt.answers)),
		AnsweredCount:        len(s.attempt.answers),
		RemainingSeconds:     s.attempt.remainingSeconds,
		Trigger:              s.trigger,
		SubmitAttempts:       s.coordinator.Attempts(),
		Retryable:            s.retryable,
	}
	for q, a := range s.attempt.answers {
		snap.Answers[q] = a
	}
	if s.quiz != nil {
		snap.QuestionCount = len(s.quiz.Questions)
	}
	if !s.attempt.startedAt.IsZero() {
		started := s.attempt.startedAt
		snap.StartedAt = &started
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *QuizSession) BlockedEvents() int {
	return s.monitor.BlockedCount()
}

// buildPayload 每道已作答题目一条，按题目顺序排列；未作答的题目不出现
func (s *QuizSession) buildPayload(now time.Time) []model.SubmittedAnswer {
	payload := make([]model.SubmittedAnswer, 0, len(s.attempt.answers))
	for questionID, answerID := range s.attempt.answers {
		payload = append(payload, model.SubmittedAnswer{
			QuestionID: questionID,
			AnswerID:   answerID,
			StartAt:    s.attempt.startedAt,
			EndAt:      now,
		})
	}
	sort.Slice(payload, func(i, j int) bool {
		return s.quiz.QuestionIndex(payload[i].QuestionID) < s.quiz.QuestionIndex(payload[j].QuestionID)
	})
	return payload
}

func (s *QuizSession) quizID() string {
	if s.SharedQuizID != "" {
		return s.SharedQuizID
	}
	return s.quiz.ID
}

func (s *QuizSession) dispatch(trigger model.Trigger, payload []model.SubmittedAnswer) (<-chan SubmitOutcome, error) {
	return s.coordinator.Dispatch(trigger, s.quizID(), payload, s.complete)
}

// complete 应用提交结果；每条路径都会落到终态或可重试状态
func (s *QuizSession) complete(o SubmitOutcome) {
	s.mu.Lock()
	if o.Err == nil {
		s.phase.Store(int32(model.PhaseSubmitted))
		s.lastErr = nil
		s.mu.Unlock()

		switch o.Trigger {
		case model.TriggerViolationDetected:
			s.notify(model.NoticeViolationSubmitted, "violation detected, auto-submitted")
		case model.TriggerTimeExpired:
			s.notify(model.NoticeTimeExpiredSubmitted, "time expired, auto-submitted")
		default:
			s.notify(model.NoticeSubmitted, o.Result.Message)
		}
		s.release()
		return
	}

	s.lastErr = o.Err
	if o.Retryable {
		s.retryable = true
		s.mu.Unlock()
		s.notify(model.NoticeSubmitFailedRetry, "submission failed, please retry")
		return
	}

	s.phase.Store(int32(model.PhaseAborted))
	s.mu.Unlock()

	switch o.Trigger {
	case model.TriggerViolationDetected:
		s.notify(model.NoticeSessionClosed, "violation detected, auto-submission failed")
	case model.TriggerTimeExpired:
		s.notify(model.NoticeSessionClosed, "time expired, auto-submission failed")
	default:
		s.notify(model.NoticeSessionClosed, "submission failed")
	}
	s.release()
}

func (s *QuizSession) tick(now time.Time) (int, bool) {
	s.mu.Lock()
	if s.Phase() != model.PhaseOpen {
		s.mu.Unlock()
		return 0, false
	}
	remaining := s.attempt.advance(now)
	s.mu.Unlock()

	s.deps.Env.Notify(model.Notice{Kind: model.NoticeTick, SessionID: s.ID, RemainingSeconds: &remaining})
	return remaining, true
}

func (s *QuizSession) onTimeExpired() {
	s.log.Info("quiz time expired")
	if _, err := s.RequestSubmit(model.TriggerTimeExpired, true); err != nil {
		s.log.Error("time-expiry submission not dispatched", zap.Error(err))
	}
}

func (s *QuizSession) onViolation(sig model.Signal) {
	ch, err := s.RequestSubmit(model.TriggerViolationDetected, true)
	if err != nil {
		s.log.Error("violation submission not dispatched", zap.Error(err))
		return
	}
	if ch != nil && s.deps.OnViolation != nil {
		s.deps.OnViolation(s, sig)
	}
}

// leaveOpen 停止计时器并注销监听，必须在 mu 之外调用
func (s *QuizSession) leaveOpen() {
	s.monitor.Disarm()
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (s *QuizSession) release() {
	s.exitFullscreen()
	s.finish()
}

func (s *QuizSession) exitFullscreen() {
	ctx, cancel := context.WithTimeout(context.Background(), exitFullscreenTimeout)
	defer cancel()
	if err := s.deps.Env.ExitFullscreen(ctx); err != nil {
		s.log.Warn("exit fullscreen failed", zap.Error(err))
	}
}

func (s *QuizSession) finish() {
	s.doneOnce.Do(func() {
		phase := s.Phase()
		monitoring.SessionOutcomeCounter.WithLabelValues(phase.String(), string(s.trigger)).Inc()
		s.log.Info("quiz session closed", zap.String("phase", phase.String()))
		close(s.done)
		if s.deps.OnTerminal != nil {
			s.deps.OnTerminal(s)
		}
	})
}

func (s *QuizSession) notify(kind model.NoticeKind, message string) {
	s.deps.Env.Notify(model.Notice{Kind: kind, SessionID: s.ID, Message: message})
}

func (s *QuizSession) lockdownPolicy() *model.LockdownPolicy {
	return &model.LockdownPolicy{
		BlockCopy:         true,
		BlockContextMenu:  true,
		BlockSelection:    true,
		BlockedKeyCombos:  s.deps.Settings.BlockedKeyCombos,
		ResizeThresholdPx: s.deps.Settings.ResizeThresholdPx,
	}
}
