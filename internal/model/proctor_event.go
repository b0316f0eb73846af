package model

const (
	ProctorEventViolation = "violation"
	ProctorEventOutcome   = "outcome"
)

// ProctorEvent 监考审计记录：违规与会话结果
type ProctorEvent struct {
	AuditModel

	SessionID     string `gorm:"size:36;index" json:"sessionId"`
	LearnerID     uint   `gorm:"index;type:bigint unsigned" json:"learnerId"`
	SharedQuizID  string `gorm:"size:64;index" json:"sharedQuizId"`
	EventType     string `gorm:"size:20" json:"eventType"`
	Trigger       string `gorm:"size:32" json:"trigger"`
	Signal        string `gorm:"size:32" json:"signal"`
	Phase         string `gorm:"size:20" json:"phase"`
	AnsweredCount int    `json:"answeredCount"`
	QuestionCount int    `json:"questionCount"`
	BlockedEvents int    `json:"blockedEvents"`
	Error         string `gorm:"type:text" json:"error"`
}

func (ProctorEvent) TableName() string {
	return "proctor_events"
}
