package service

import (
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/internal/util"
	"coder_edu_lockdown/pkg/monitoring"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SubmitOutcome 一次提交请求的结果
type SubmitOutcome struct {
	Trigger   model.Trigger      `json:"trigger"`
	Attempt   int                `json:"attempt"`
	Result    model.SubmitResult `json:"result"`
	Err       error              `json:"-"`
	Retryable bool               `json:"retryable"`
}

// SubmissionCoordinator 把一次被接受的提交请求转换成一次网络提交。
// 会话阶段的 Open→Submitting 闸门在 QuizSession 中；这里保证同一时刻最多一个在途请求。
type SubmissionCoordinator struct {
	submitter   QuizSubmitter
	timeout     time.Duration
	maxAttempts int
	log         *zap.Logger

	inFlight atomic.Bool
	attempts atomic.Int32
}

func NewSubmissionCoordinator(submitter QuizSubmitter, timeout time.Duration, maxAttempts int, log *zap.Logger) *SubmissionCoordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SubmissionCoordinator{
		submitter:   submitter,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Dispatch 异步发送；complete 在结果返回后、outcome 写入 channel 之前调用
func (c *SubmissionCoordinator) Dispatch(trigger model.Trigger, quizID string, payload []model.SubmittedAnswer, complete func(SubmitOutcome)) (<-chan SubmitOutcome, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, util.ErrSubmissionInFlight
	}
	attempt := int(c.attempts.Add(1))
	out := make(chan SubmitOutcome, 1)

	go func() {
		res, err := c.send(trigger, quizID, payload)
		outcome := SubmitOutcome{
			Trigger: trigger,
			Attempt: attempt,
			Result:  res,
			Err:     err,
		}
		if err != nil {
			// 超时/违规触发的提交失败后直接关闭会话
			outcome.Retryable = !trigger.Forced() && attempt < c.maxAttempts
		}
		c.inFlight.Store(false)

		complete(outcome)
		out <- outcome
		close(out)
	}()

	return out, nil
}

func (c *SubmissionCoordinator) Attempts() int {
	return int(c.attempts.Load())
}

func (c *SubmissionCoordinator) send(trigger model.Trigger, quizID string, payload []model.SubmittedAnswer) (model.SubmitResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.submitter.SubmitQuiz(ctx, quizID, payload)
	monitoring.SubmitDuration.WithLabelValues(string(trigger)).Observe(time.Since(start).Seconds())

	if err == nil && !res.OK() {
		err = fmt.Errorf("%w: code %d: %s", util.ErrPlatformRejected, res.Code, res.Message)
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.log.Error("quiz submission failed",
			zap.String("quizId", quizID),
			zap.String("trigger", string(trigger)),
			zap.Int("answers", len(payload)),
			zap.Error(err))
	} else {
		c.log.Info("quiz submitted",
			zap.String("quizId", quizID),
			zap.String("trigger", string(trigger)),
			zap.Int("answers", len(payload)))
	}
	monitoring.SubmissionCounter.WithLabelValues(string(trigger), result).Inc()

	return res, err
}
