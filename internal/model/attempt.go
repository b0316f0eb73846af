package model

import "time"

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAcknowledged
	PhaseOpen
	PhaseSubmitting
	PhaseSubmitted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcknowledged:
		return "acknowledged"
	case PhaseOpen:
		return "open"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseSubmitted || p == PhaseAborted
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Trigger 提交请求的来源
type Trigger string

const (
	TriggerUserInitiated     Trigger = "user_initiated"
	TriggerTimeExpired       Trigger = "time_expired"
	TriggerViolationDetected Trigger = "violation_detected"
)

// Forced 超时和违规触发的提交不需要确认，也不允许重试
func (t Trigger) Forced() bool {
	return t == TriggerTimeExpired || t == TriggerViolationDetected
}

// SubmittedAnswer submitQuiz 请求体中的一项
type SubmittedAnswer struct {
	QuestionID string    `json:"questionId"`
	AnswerID   string    `json:"answerId"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
}

// SubmitResult 平台接口返回，只有 Code == 200 视为成功
type SubmitResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r SubmitResult) OK() bool {
	return r.Code == 200
}

// AttemptSnapshot 提供给界面渲染的只读视图
type AttemptSnapshot struct {
	SessionID            string            `json:"sessionId"`
	SharedQuizID         string            `json:"sharedQuizId"`
	Phase                Phase             `json:"phase"`
	Quiz                 *QuizDefinition   `json:"quiz,omitempty"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	Answers              map[string]string `json:"answers"`
	AnsweredCount        int               `json:"answeredCount"`
	QuestionCount        int               `json:"questionCount"`
	StartedAt            *time.Time        `json:"startedAt,omitempty"`
	RemainingSeconds     int               `json:"remainingSeconds"`
	Trigger              Trigger           `json:"trigger,omitempty"`
	SubmitAttempts       int               `json:"submitAttempts"`
	Retryable            bool              `json:"retryable"`
	LastError            string            `json:"lastError,omitempty"`
}
