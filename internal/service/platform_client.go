package service

import (
	"bytes"
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/model"
	"coder_edu_lockdown/pkg/tracing"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PlatformAPI 平台 REST 接口，token 为学生自己的登录凭证
type PlatformAPI interface {
	ListQuizzesInClass(ctx context.Context, token, classID string) ([]model.ClassQuiz, error)
	SubmitQuiz(ctx context.Context, token, quizID string, answers []model.SubmittedAnswer) (model.SubmitResult, error)
}

type PlatformClient struct {
	baseURL string
	client  *http.Client
}

func NewPlatformClient(cfg config.PlatformConfig) *PlatformClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PlatformClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// envelope 平台统一响应格式
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitQuizRequest struct {
	QuizID  string                  `json:"quizId"`
	Answers []model.SubmittedAnswer `json:"answers"`
}

func (p *PlatformClient) ListQuizzesInClass(ctx context.Context, token, classID string) ([]model.ClassQuiz, error) {
	ctx, span := tracing.Tracer.Start(ctx, "platform.listQuizzesInClass")
	defer span.End()
	span.SetAttributes(attribute.String("classId", classID))

	endpoint := fmt.Sprintf("%s/classes/%s/quizzes", p.baseURL, url.PathEscape(classID))
	env, err := p.do(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if env.Code != http.StatusOK {
		err = fmt.Errorf("list quizzes: code %d: %s", env.Code, env.Message)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var quizzes []model.ClassQuiz
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &quizzes); err != nil {
			return nil, fmt.Errorf("decode class quizzes: %w", err)
		}
	}
	span.SetAttributes(attribute.Int("quizzes", len(quizzes)))
	return quizzes, nil
}

// SubmitQuiz 非 200 的业务码原样返回给调用方判断，只有网络或解码错误才返回 error
func (p *PlatformClient) SubmitQuiz(ctx context.Context, token, quizID string, answers []model.SubmittedAnswer) (model.SubmitResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "platform.submitQuiz")
	defer span.End()
	span.SetAttributes(attribute.String("quizId", quizID), attribute.Int("answers", len(answers)))

	body, err := json.Marshal(submitQuizRequest{QuizID: quizID, Answers: answers})
	if err != nil {
		return model.SubmitResult{}, err
	}

	endpoint := fmt.Sprintf("%s/quizzes/%s/submit", p.baseURL, url.PathEscape(quizID))
	env, err := p.do(ctx, http.MethodPost, endpoint, token, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.SubmitResult{}, err
	}
	span.SetAttributes(attribute.Int("code", env.Code))
	return model.SubmitResult{Code: env.Code, Message: env.Message}, nil
}

// ForToken 绑定学生 token，供 QuizSession 使用
func (p *PlatformClient) ForToken(token string) QuizSubmitter {
	return tokenSubmitter{api: p, token: token}
}

type tokenSubmitter struct {
	api   PlatformAPI
	token string
}

func (t tokenSubmitter) SubmitQuiz(ctx context.Context, quizID string, answers []model.SubmittedAnswer) (model.SubmitResult, error) {
	return t.api.SubmitQuiz(ctx, t.token, quizID, answers)
}

func (p *PlatformClient) do(ctx context.Context, method, endpoint, token string, body []byte) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("platform API error (status %d): %s", resp.StatusCode, string(raw))
		}
		return nil, fmt.Errorf("decode platform response: %w", err)
	}
	// 部分接口出错时只给 HTTP 状态码
	if env.Code == 0 {
		env.Code = resp.StatusCode
	}
	return &env, nil
}
