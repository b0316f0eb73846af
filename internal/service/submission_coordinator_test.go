package service

import (
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/util"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitOutcome(t *testing.T, ch <-chan SubmitOutcome) SubmitOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("submission outcome not delivered")
		return SubmitOutcome{}
	}
}

func TestSubmissionCoordinatorSuccess(t *testing.T) {
	sub := newFakeSubmitter()
	c := NewSubmissionCoordinator(sub, time.Second, 3, zap.NewNop())

	var completed []SubmitOutcome
	payload := []model.SubmittedAnswer{{QuestionID: "q1", AnswerID: "q1a1"}}
	ch, err := c.Dispatch(model.TriggerUserInitiated, "shared-1", payload, func(o SubmitOutcome) { completed = append(completed, o) })
	require.NoError(t, err)

	o := waitOutcome(t, ch)
	require.NoError(t, o.Err)
	require.True(t, o.Result.OK())
	require.Equal(t, 1, o.Attempt)
	require.Len(t, completed, 1)

	calls := sub.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "shared-1", calls[0].quizID)
	require.Equal(t, payload, calls[0].answers)
}

func TestSubmissionCoordinatorNon200IsFailure(t *testing.T) {
	sub := newFakeSubmitter(submitResponse{result: model.SubmitResult{Code: 201, Message: "created"}})
	c := NewSubmissionCoordinator(sub, time.Second, 3, zap.NewNop())

	ch, err := c.Dispatch(model.TriggerUserInitiated, "shared-1", nil, func(SubmitOutcome) {})
	require.NoError(t, err)

	o := waitOutcome(t, ch)
	require.ErrorIs(t, o.Err, util.ErrPlatformRejected)
	require.True(t, o.Retryable)
}

func TestSubmissionCoordinatorForcedFailureNotRetryable(t *testing.T) {
	for _, trigger := range []model.Trigger{model.TriggerTimeExpired, model.TriggerViolationDetected} {
		sub := newFakeSubmitter(submitResponse{err: errors.New("connection reset")})
		c := NewSubmissionCoordinator(sub, time.Second, 3, zap.NewNop())

		ch, err := c.Dispatch(trigger, "shared-1", nil, func(SubmitOutcome) {})
		require.NoError(t, err)
		o := waitOutcome(t, ch)
		require.Error(t, o.Err)
		require.False(t, o.Retryable, string(trigger))
	}
}

func TestSubmissionCoordinatorRetryBudget(t *testing.T) {
	sub := newFakeSubmitter(submitResponse{err: errors.New("timeout")})
	c := NewSubmissionCoordinator(sub, time.Second, 2, zap.NewNop())

	o := waitOutcome(t, mustDispatch(t, c))
	require.True(t, o.Retryable)

	o = waitOutcome(t, mustDispatch(t, c))
	require.False(t, o.Retryable, "second failure exhausts the budget of 2")
	require.Equal(t, 2, c.Attempts())
}

func TestSubmissionCoordinatorRejectsConcurrentDispatch(t *testing.T) {
	sub := newFakeSubmitter()
	sub.gate = make(chan struct{})
	c := NewSubmissionCoordinator(sub, time.Second, 3, zap.NewNop())

	ch := mustDispatch(t, c)
	<-sub.entered

	_, err := c.Dispatch(model.TriggerUserInitiated, "shared-1", nil, func(SubmitOutcome) {})
	require.ErrorIs(t, err, util.ErrSubmissionInFlight)

	close(sub.gate)
	waitOutcome(t, ch)
	require.Len(t, sub.Calls(), 1)
}

func TestSubmissionCoordinatorTimeout(t *testing.T) {
	sub := newFakeSubmitter()
	sub.gate = make(chan struct{})
	defer close(sub.gate)
	c := NewSubmissionCoordinator(sub, 20*time.Millisecond, 3, zap.NewNop())

	o := waitOutcome(t, mustDispatch(t, c))
	require.Error(t, o.Err)
	require.True(t, o.Retryable)
}

func mustDispatch(t *testing.T, c *SubmissionCoordinator) <-chan SubmitOutcome {
	t.Helper()
	ch, err := c.Dispatch(model.TriggerUserInitiated, "shared-1", nil, func(SubmitOutcome) {})
	require.NoError(t, err)
	return ch
}
