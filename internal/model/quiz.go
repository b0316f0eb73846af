package model

import "time"

// QuizDefinition 一次会话内只读的测验定义
type QuizDefinition struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Answers []Answer `json:"answers"`
}

// Answer 的 IsCorrect 只在提交后的回顾数据里出现，作答过程中始终为 nil
type Answer struct {
	ID        string `json:"id"`
	Text      string `json:"answer"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

// QuizWindow 测验分配到班级时的开放时间段
type QuizWindow struct {
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
}

// ClassQuiz listQuizzesInClass 返回的一项
type ClassQuiz struct {
	SharedQuizID string         `json:"sharedQuizId"`
	Quiz         QuizDefinition `json:"quiz"`
	StartAt      *time.Time     `json:"startAt,omitempty"`
	EndAt        *time.Time     `json:"endAt,omitempty"`
	IsActive     bool           `json:"isActive"`
}

func (c ClassQuiz) Window() QuizWindow {
	return QuizWindow{StartAt: c.StartAt, EndAt: c.EndAt}
}

func (q *QuizDefinition) QuestionIndex(questionID string) int {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

func (q *Question) HasAnswer(answerID string) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

type QuizStatus string

const (
	QuizStatusInactive QuizStatus = "inactive"
	QuizStatusUpcoming QuizStatus = "upcoming"
	QuizStatusOpen     QuizStatus = "open"
	QuizStatusClosed   QuizStatus = "closed"
)

// Status 根据开放时间段判断当前能否开始作答
func (c ClassQuiz) Status(now time.Time) QuizStatus {
	switch {
	case !c.IsActive:
		return QuizStatusInactive
	case c.StartAt != nil && now.Before(*c.StartAt):
		return QuizStatusUpcoming
	case c.EndAt != nil && !now.Before(*c.EndAt):
		return QuizStatusClosed
	}
	return QuizStatusOpen
}

// Redacted 去掉正确答案标记，作答过程中不下发
func (q QuizDefinition) Redacted() QuizDefinition {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		answers := make([]Answer, len(question.Answers))
		for j, a := range question.Answers {
			a.IsCorrect = nil
			answers[j] = a
		}
		question.Answers = answers
		out.Questions[i] = question
	}
	return out
}
