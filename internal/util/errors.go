package util

import "errors"

var (
	ErrQuizNotFound          = errors.New("quiz not found in class")
	ErrQuizNotActive         = errors.New("quiz is not active")
	ErrQuizNotYetAvailable   = errors.New("quiz not yet available")
	ErrQuizClosed            = errors.New("quiz window has closed")
	ErrQuizHasNoQuestions    = errors.New("quiz has no questions")
	ErrSecureModeUnavailable = errors.New("could not enter secure mode")
	ErrEnvironmentOffline    = errors.New("lockdown client not connected")

	ErrInvalidTransition  = errors.New("operation not allowed in current session phase")
	ErrSessionClosed      = errors.New("session already closed")
	ErrNoActiveSession    = errors.New("no active quiz session")
	ErrSessionActive      = errors.New("another quiz session is already active")
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrUnknownAnswer      = errors.New("unknown answer for question")
	ErrIndexOutOfRange    = errors.New("question index out of range")
	ErrSubmissionInFlight = errors.New("submission already in flight")

	ErrPlatformRejected    = errors.New("platform rejected submission")
	ErrPlatformUnavailable = errors.New("platform API unavailable")
)
