package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuestionID identifies a question within a loaded bank. Stored records may
// carry it as a JSON number or string; it is always written back as a string.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = QuestionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %s", string(data))
	}
	*id = QuestionID(n.String())
	return nil
}

// Answer is a list of option keys. Single and judge answers hold exactly one
// key; multiple-choice answers hold the keys in ascending order.
type Answer []string

func (a Answer) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Answer{s}
		return nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("answer must be a string or an array of strings: %w", err)
	}
	*a = Answer(keys)
	return nil
}

type Option struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type Question struct {
	ID          QuestionID `json:"id" validate:"required"`
	Type        string     `json:"type" validate:"oneof=single multiple judge"`
	Question    string     `json:"question" validate:"required"`
	Options     []Option   `json:"options" validate:"min=1,dive"`
	Answer      Answer     `json:"answer" validate:"min=1,dive,required"`
	Explanation string     `json:"explanation,omitempty"`
	Score       float64    `json:"score" validate:"gt=0"`
	Category    string     `json:"category,omitempty"`
	Source      string     `json:"source,omitempty"`
}

// HasOption reports whether key is one of the question's option keys.
func (q *Question) HasOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

type WrongQuestion struct {
	QuestionID    QuestionID `json:"questionId"`
	UserAnswer    Answer     `json:"userAnswer"`
	CorrectAnswer Answer     `json:"correctAnswer"`
	Timestamp     int64      `json:"timestamp"`
	Attempts      int        `json:"attempts"`
}

type UserAnswer struct {
	QuestionID QuestionID `json:"questionId"`
	UserAnswer Answer     `json:"userAnswer"`
	IsCorrect  bool       `json:"isCorrect"`
	Timestamp  int64      `json:"timestamp"`
}

type Stats struct {
	TotalAnswered  int `json:"totalAnswered"`
	CorrectAnswers int `json:"correctAnswers"`
	StudyTime      int `json:"studyTime"` // minutes
}

// Progress is the resumable snapshot of a running session.
type Progress struct {
	SessionID            string       `json:"sessionId,omitempty"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	CurrentMode          string       `json:"currentMode"`
	UserAnswers          []UserAnswer `json:"userAnswers"`
	QuizStartTime        int64        `json:"quizStartTime"` // unix ms, 0 when unset
	CurrentQuizQuestions []Question   `json:"currentQuizQuestions"`
}

// Resumable reports whether the snapshot still points at an unanswered question.
func (p *Progress) Resumable() bool {
	return len(p.CurrentQuizQuestions) > 0 &&
		p.CurrentQuestionIndex >= 0 &&
		p.CurrentQuestionIndex < len(p.CurrentQuizQuestions)
}

// Summary describes a finished session.
type Summary struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Answered  int    `json:"answered"`
	Correct   int    `json:"correct"`
	Accuracy  int    `json:"accuracy"` // percent
	Minutes   int    `json:"minutes"`
}

// QuestionProgress is the position within the running session, 1-based.
type QuestionProgress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// WrongQuestionDetail joins a ledger entry with its question, when the
// question is still in the loaded bank.
type WrongQuestionDetail struct {
	WrongQuestion
	Question *Question `json:"question,omitempty"`
}

type StatsReport struct {
	Stats
	CorrectRate int `json:"correctRate"` // percent
}

// AnswerResult is the outcome of one submission.
type AnswerResult struct {
	QuestionID    QuestionID `json:"questionId"`
	IsCorrect     bool       `json:"isCorrect"`
	CorrectAnswer Answer     `json:"correctAnswer"`
	Explanation   string     `json:"explanation,omitempty"`
}

// BankLoadedEvent is published after a bank replaces the loaded one.
type BankLoadedEvent struct {
	Count    int    `json:"count"`
	Object   string `json:"object,omitempty"`
	LoadedAt string `json:"loaded_at"`
}
