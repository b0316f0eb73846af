package service

import (
	"coder_edu_lockdown/internal/model"
	"context"
)

// Subscription 一次性的监听注册，Unsubscribe 可重复调用
type Subscription interface {
	Unsubscribe()
}

type SignalHandler func(model.Signal)

// Environment 学生浏览器一侧的能力：全屏、环境信号与提示
type Environment interface {
	// RequestFullscreen 会等待客户端响应，可能被拒绝或超时
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	Subscribe(handler SignalHandler) Subscription
	Notify(notice model.Notice)
}

// QuizSubmitter submitQuiz 的调用方，已绑定学生身份
type QuizSubmitter interface {
	SubmitQuiz(ctx context.Context, quizID string, answers []model.SubmittedAnswer) (model.SubmitResult, error)
}

type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }
