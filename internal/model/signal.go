package model

import "time"

type SignalKind string

const (
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalFullscreenExit   SignalKind = "fullscreen_exit"
	SignalWindowBlur       SignalKind = "window_blur"
	SignalResize           SignalKind = "resize"

	SignalCopy        SignalKind = "copy"
	SignalCut         SignalKind = "cut"
	SignalContextMenu SignalKind = "context_menu"
	SignalSelectStart SignalKind = "select_start"
	SignalKeyCombo    SignalKind = "key_combo"
)

// Blocked 客户端直接拦截的事件，只计数不判违规
func (k SignalKind) Blocked() bool {
	switch k {
	case SignalCopy, SignalCut, SignalContextMenu, SignalSelectStart, SignalKeyCombo:
		return true
	}
	return false
}

// Viewport 浏览器窗口外框与可视区域尺寸
type Viewport struct {
	OuterWidth  int `json:"outerWidth"`
	OuterHeight int `json:"outerHeight"`
	InnerWidth  int `json:"innerWidth"`
	InnerHeight int `json:"innerHeight"`
}

// Delta 返回宽、高两个方向上外框与可视区域差值的较大者
func (v Viewport) Delta() int {
	dw := v.OuterWidth - v.InnerWidth
	dh := v.OuterHeight - v.InnerHeight
	if dw > dh {
		return dw
	}
	return dh
}

type Signal struct {
	Kind       SignalKind `json:"kind"`
	Viewport   *Viewport  `json:"viewport,omitempty"`
	Combo      string     `json:"combo,omitempty"`
	ObservedAt time.Time  `json:"observedAt"`
}

// LockdownPolicy 进入作答状态时下发给客户端的拦截规则
type LockdownPolicy struct {
	BlockCopy         bool     `json:"blockCopy"`
	BlockContextMenu  bool     `json:"blockContextMenu"`
	BlockSelection    bool     `json:"blockSelection"`
	BlockedKeyCombos  []string `json:"blockedKeyCombos"`
	ResizeThresholdPx int      `json:"resizeThresholdPx"`
}

type NoticeKind string

const (
	NoticeQuizLoadFailed        NoticeKind = "quiz_load_failed"
	NoticeSecureModeUnavailable NoticeKind = "secure_mode_unavailable"
	NoticeViolationSubmitted    NoticeKind = "violation_auto_submitted"
	NoticeTimeExpiredSubmitted  NoticeKind = "time_expired_auto_submitted"
	NoticeSubmitFailedRetry     NoticeKind = "submission_failed_retry"
	NoticeSubmitted             NoticeKind = "submitted"
	NoticeSessionClosed         NoticeKind = "session_closed"
	NoticeTick                  NoticeKind = "tick"
	NoticeLockdown              NoticeKind = "lockdown"
)

// Notice 推送给学生端的提示或状态变化
type Notice struct {
	Kind             NoticeKind      `json:"kind"`
	SessionID        string          `json:"sessionId,omitempty"`
	Message          string          `json:"message,omitempty"`
	RemainingSeconds *int            `json:"remainingSeconds,omitempty"`
	Policy           *LockdownPolicy `json:"policy,omitempty"`
}
