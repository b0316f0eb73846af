package service

import (
	"coder_edu_lockdown/internal/config"
	"coder_edu_lockdown/internal/model"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPlatformServer(t *testing.T, handler http.HandlerFunc) *PlatformClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPlatformClient(config.PlatformConfig{BaseURL: srv.URL + "/", TimeoutSeconds: 2})
}

func TestListQuizzesInClass(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/classes/c-42/quizzes", r.URL.Path)
		require.Equal(t, "Bearer learner-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":[
			{"sharedQuizId":"sq-1","isActive":true,"startAt":"2025-03-01T08:00:00Z",
			 "quiz":{"id":"quiz-1","title":"Pointers","questions":[
				{"id":"q1","question":"What does & return?","answers":[{"id":"a1","answer":"address","isCorrect":true}]}]}}]}`)
	})

	quizzes, err := client.ListQuizzesInClass(context.Background(), "learner-token", "c-42")
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	require.Equal(t, "sq-1", quizzes[0].SharedQuizID)
	require.True(t, quizzes[0].IsActive)
	require.Nil(t, quizzes[0].EndAt)
	require.True(t, quizzes[0].StartAt.Equal(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)))
	require.Equal(t, "What does & return?", quizzes[0].Quiz.Questions[0].Prompt)
	require.NotNil(t, quizzes[0].Quiz.Questions[0].Answers[0].IsCorrect)
}

func TestListQuizzesInClassErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"business error", http.StatusOK, `{"code":403,"message":"not a member"}`, "not a member"},
		{"status only", http.StatusUnauthorized, `{"message":"token expired"}`, "code 401"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "status 502"},
		{"bad data", http.StatusOK, `{"code":200,"data":{"unexpected":true}}`, "decode class quizzes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.ListQuizzesInClass(context.Background(), "tok", "c-1")
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestListQuizzesInClassEmptyData(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"message":"ok","data":null}`)
	})
	quizzes, err := client.ListQuizzesInClass(context.Background(), "tok", "c-1")
	require.NoError(t, err)
	require.Empty(t, quizzes)
}

func TestSubmitQuiz(t *testing.T) {
	var got submitQuizRequest
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/quizzes/sq-1/submit", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"code":200,"message":"submitted"}`)
	})

	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", AnswerID: "a1", StartAt: started, EndAt: started.Add(time.Minute)},
	}
	res, err := client.ForToken("tok").SubmitQuiz(context.Background(), "sq-1", answers)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "submitted", res.Message)

	require.Equal(t, "sq-1", got.QuizID)
	require.Len(t, got.Answers, 1)
	require.Equal(t, "a1", got.Answers[0].AnswerID)
	require.True(t, got.Answers[0].EndAt.Equal(started.Add(time.Minute)))
}

func TestSubmitQuizRejectedIsNotTransportError(t *testing.T) {
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"already submitted"}`)
	})
	res, err := client.SubmitQuiz(context.Background(), "tok", "sq-1", nil)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "already submitted", res.Message)
}

func TestSubmitQuizHonoursContext(t *testing.T) {
	release := make(chan struct{})
	client := newPlatformServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.SubmitQuiz(ctx, "tok", "sq-1", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
