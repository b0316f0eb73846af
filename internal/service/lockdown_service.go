package service

import (
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/logger"
	"coder_edu_lockdown/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const auditTimeout = 5 * time.Second

// SessionLock 跨实例的学生会话锁
type SessionLock interface {
	Acquire(ctx context.Context, learnerID uint, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, learnerID uint, sessionID string) error
	// Extend 把自己持有（或已过期）的锁续期到 ttl；被其他会话持有时返回 false
	Extend(ctx context.Context, learnerID uint, sessionID string, ttl time.Duration) (bool, error)
}

type ProctorEventStore interface {
	Create(ctx context.Context, event *model.ProctorEvent) error
}

type EnvironmentProvider interface {
	EnvironmentFor(userID uint) Environment
}

type sessionEntry struct {
	session   *QuizSession
	classQuiz model.ClassQuiz
}

// LockdownService 按学生管理唯一的作答会话
type LockdownService struct {
	platform PlatformAPI
	envs     EnvironmentProvider
	lock     SessionLock
	events   ProctorEventStore
	clock    Clock

	settings atomic.Pointer[config.LockdownConfig]

	mu       sync.Mutex
	sessions map[uint]*sessionEntry
}

func NewLockdownService(platform PlatformAPI, envs EnvironmentProvider, lock SessionLock, events ProctorEventStore, settings config.LockdownConfig) *LockdownService {
	s := &LockdownService{
		platform: platform,
		envs:     envs,
		lock:     lock,
		events:   events,
		clock:    SystemClock(),
		sessions: make(map[uint]*sessionEntry),
	}
	s.settings.Store(&settings)
	return s
}

// WithClock 测试用
func (s *LockdownService) WithClock(clock Clock) *LockdownService {
	s.clock = clock
	return s
}

// UpdateSettings 配置热更新，只影响之后创建的会话
func (s *LockdownService) UpdateSettings(settings config.LockdownConfig) {
	s.settings.Store(&settings)
	logger.Log.Info("lockdown settings reloaded",
		zap.Int("fallbackBudgetSeconds", settings.FallbackBudgetSeconds),
		zap.Int("resizeThresholdPx", settings.ResizeThresholdPx),
		zap.Int("maxSubmitAttempts", settings.MaxSubmitAttempts))
}

func (s *LockdownService) Settings() config.LockdownConfig {
	return *s.settings.Load()
}

// ListClassQuizzes 班级测验列表，去掉正确答案
func (s *LockdownService) ListClassQuizzes(ctx context.Context, token, classID string) ([]model.ClassQuiz, error) {
	quizzes, err := s.platform.ListQuizzesInClass(ctx, token, classID)
	if err != nil {
		return nil, err
	}
	for i := range quizzes {
		quizzes[i].Quiz = quizzes[i].Quiz.Redacted()
	}
	return quizzes, nil
}

// Acknowledge 学生确认防作弊提示后创建会话。尚未开始作答的旧会话会被替换。
func (s *LockdownService) Acknowledge(ctx context.Context, learnerID uint, token, classID, sharedQuizID string) (model.AttemptSnapshot, error) {
	if err := s.replaceIdle(learnerID); err != nil {
		return model.AttemptSnapshot{}, err
	}

	quizzes, err := s.platform.ListQuizzesInClass(ctx, token, classID)
	if err != nil {
		return model.AttemptSnapshot{}, fmt.Errorf("%w: list quizzes in class %s: %v", util.ErrPlatformUnavailable, classID, err)
	}
	classQuiz, err := pickClassQuiz(quizzes, sharedQuizID, s.clock.Now())
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	classQuiz.Quiz = classQuiz.Quiz.Redacted()

	settings := s.Settings()
	session := NewQuizSession(learnerID, sharedQuizID, SessionDeps{
		Env:         s.envs.EnvironmentFor(learnerID),
		Submitter:   tokenSubmitter{api: s.platform, token: token},
		Clock:       s.clock,
		Settings:    settings,
		OnViolation: s.recordViolation,
		OnTerminal:  s.reap,
	})

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx, learnerID, session.ID, settings.SessionLockTTL())
		if err != nil {
			return model.AttemptSnapshot{}, fmt.Errorf("acquire session lock: %w", err)
		}
		if !ok {
			return model.AttemptSnapshot{}, util.ErrSessionActive
		}
	}

	s.mu.Lock()
	if cur, ok := s.sessions[learnerID]; ok && !cur.session.Phase().Terminal() {
		s.mu.Unlock()
		s.releaseLock(learnerID, session.ID)
		return model.AttemptSnapshot{}, util.ErrSessionActive
	}
	s.sessions[learnerID] = &sessionEntry{session: session, classQuiz: classQuiz}
	s.mu.Unlock()
	monitoring.ActiveSessions.Inc()

	if err := session.Acknowledge(); err != nil {
		return model.AttemptSnapshot{}, err
	}
	return session.Snapshot(), nil
}

func pickClassQuiz(quizzes []model.ClassQuiz, sharedQuizID string, now time.Time) (model.ClassQuiz, error) {
	for _, q := range quizzes {
		if q.SharedQuizID != sharedQuizID {
			continue
		}
		switch q.Status(now) {
		case model.QuizStatusInactive:
			return q, util.ErrQuizNotActive
		case model.QuizStatusUpcoming:
			return q, util.ErrQuizNotYetAvailable
		case model.QuizStatusClosed:
			return q, util.ErrQuizClosed
		}
		return q, nil
	}
	return model.ClassQuiz{}, util.ErrQuizNotFound
}

// replaceIdle 取消尚未开始的会话；作答中或提交中的会话不允许替换
func (s *LockdownService) replaceIdle(learnerID uint) error {
	s.mu.Lock()
	entry, ok := s.sessions[learnerID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	switch entry.session.Phase() {
	case model.PhaseIdle, model.PhaseAcknowledged:
		if err := entry.session.CancelSession(); err != nil && !errors.Is(err, util.ErrInvalidTransition) {
			return err
		}
		return nil
	case model.PhaseSubmitted, model.PhaseAborted:
		return nil
	}
	return util.ErrSessionActive
}

func (s *LockdownService) Start(ctx context.Context, learnerID uint) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	quiz := entry.classQuiz.Quiz
	if err := entry.session.StartSession(ctx, &quiz, entry.classQuiz.Window()); err != nil {
		return entry.session.Snapshot(), err
	}
	snap := entry.session.Snapshot()
	s.extendLock(ctx, learnerID, snap)
	return snap, nil
}

// extendLock 作答窗口可能长于确认阶段的锁时长，开始作答后续期到截止时间之后
func (s *LockdownService) extendLock(ctx context.Context, learnerID uint, snap model.AttemptSnapshot) {
	if s.lock == nil {
		return
	}
	ttl := time.Duration(snap.RemainingSeconds)*time.Second + s.Settings().SessionLockTTL()
	ok, err := s.lock.Extend(ctx, learnerID, snap.SessionID, ttl)
	if err != nil {
		logger.Log.Warn("extend session lock failed", zap.Uint("learnerId", learnerID), zap.String("sessionId", snap.SessionID), zap.Error(err))
		return
	}
	if !ok {
		logger.Log.Warn("session lock taken by another session", zap.Uint("learnerId", learnerID), zap.String("sessionId", snap.SessionID))
	}
}

func (s *LockdownService) SelectAnswer(learnerID uint, questionID, answerID string) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	if err := entry.session.SelectAnswer(questionID, answerID); err != nil {
		return model.AttemptSnapshot{}, err
	}
	return entry.session.Snapshot(), nil
}

func (s *LockdownService) Navigate(learnerID uint, index int) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	if err := entry.session.Navigate(index); err != nil {
		return model.AttemptSnapshot{}, err
	}
	return entry.session.Snapshot(), nil
}

// Submit 学生主动提交并等待平台返回。
// 返回 error 时快照仍然有效，调用方据此展示重试或结果。
func (s *LockdownService) Submit(ctx context.Context, learnerID uint, confirmed bool) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	session := entry.session

	ch, err := session.RequestSubmit(model.TriggerUserInitiated, confirmed)
	if err != nil {
		return session.Snapshot(), err
	}
	if ch == nil {
		// 请求被忽略：已有提交在进行或会话已结束
		if session.Phase() == model.PhaseSubmitting {
			return session.Snapshot(), util.ErrSubmissionInFlight
		}
		return session.Snapshot(), util.ErrSessionClosed
	}

	select {
	case outcome := <-ch:
		return session.Snapshot(), outcome.Err
	case <-ctx.Done():
		// 提交仍在后台进行，结果通过 websocket 通知
		return session.Snapshot(), ctx.Err()
	}
}

func (s *LockdownService) Cancel(learnerID uint) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	if err := entry.session.CancelSession(); err != nil {
		return entry.session.Snapshot(), err
	}
	return entry.session.Snapshot(), nil
}

func (s *LockdownService) Current(learnerID uint) (model.AttemptSnapshot, error) {
	entry, err := s.entry(learnerID)
	if err != nil {
		return model.AttemptSnapshot{}, err
	}
	return entry.session.Snapshot(), nil
}

// Shutdown 取消所有未提交的会话
func (s *LockdownService) Shutdown() {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		if err := e.session.CancelSession(); err != nil && !errors.Is(err, util.ErrInvalidTransition) {
			logger.Log.Warn("cancel session on shutdown failed", zap.String("sessionId", e.session.ID), zap.Error(err))
		}
	}
}

func (s *LockdownService) entry(learnerID uint) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[learnerID]
	if !ok {
		return nil, util.ErrNoActiveSession
	}
	return entry, nil
}

// reap 会话进入终态后从注册表移除并释放锁
func (s *LockdownService) reap(session *QuizSession) {
	s.mu.Lock()
	if cur, ok := s.sessions[session.LearnerID]; ok && cur.session == session {
		delete(s.sessions, session.LearnerID)
	}
	s.mu.Unlock()
	monitoring.ActiveSessions.Dec()

	s.releaseLock(session.LearnerID, session.ID)

	snap := session.Snapshot()
	s.record(&model.ProctorEvent{
		SessionID:     session.ID,
		LearnerID:     session.LearnerID,
		SharedQuizID:  session.SharedQuizID,
		EventType:     model.ProctorEventOutcome,
		Trigger:       string(snap.Trigger),
		Phase:         snap.Phase.String(),
		AnsweredCount: snap.AnsweredCount,
		QuestionCount: snap.QuestionCount,
		BlockedEvents: session.BlockedEvents(),
		Error:         snap.LastError,
	})
}

func (s *LockdownService) recordViolation(session *QuizSession, sig model.Signal) {
	snap := session.Snapshot()
	s.record(&model.ProctorEvent{
		SessionID:     session.ID,
		LearnerID:     session.LearnerID,
		SharedQuizID:  session.SharedQuizID,
		EventType:     model.ProctorEventViolation,
		Trigger:       string(model.TriggerViolationDetected),
		Signal:        string(sig.Kind),
		Phase:         snap.Phase.String(),
		AnsweredCount: snap.AnsweredCount,
		QuestionCount: snap.QuestionCount,
		BlockedEvents: session.BlockedEvents(),
	})
}

// record 审计写入失败只记日志
func (s *LockdownService) record(event *model.ProctorEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.events.Create(ctx, event); err != nil {
		logger.Log.Error("write proctor event failed",
			zap.String("sessionId", event.SessionID),
			zap.String("eventType", event.EventType),
			zap.Error(err))
	}
}

func (s *LockdownService) releaseLock(learnerID uint, sessionID string) {
	if s.lock == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.lock.Release(ctx, learnerID, sessionID); err != nil {
		logger.Log.Warn("release session lock failed", zap.Uint("learnerId", learnerID), zap.Error(err))
	}
}
