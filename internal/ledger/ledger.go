package ledger

import (
	"context"
	"math"
	"slices"
	"time"

	"quiz-trainer/internal/models"
)

type Repository interface {
	SaveWrongQuestions(ctx context.Context, wrong []models.WrongQuestion) error
	ClearWrongQuestions(ctx context.Context) error
	SaveStats(ctx context.Context, stats models.Stats) error
}

// Ledger holds the wrong-question collection and lifetime stats. It keeps at
// most one entry per question id, in first-miss order.
type Ledger struct {
	repo    Repository
	entries []models.WrongQuestion
	stats   models.Stats
	now     func() time.Time
}

func New(repo Repository, entries []models.WrongQuestion, stats models.Stats) *Ledger {
	return &Ledger{
		repo:    repo,
		entries: entries,
		stats:   stats,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for entry timestamps.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// RecordMiss upserts the entry for question and persists the collection.
func (l *Ledger) RecordMiss(ctx context.Context, question models.Question, userAnswer models.Answer) error {
	ts := l.now().UnixMilli()

	if idx := l.indexOf(question.ID); idx >= 0 {
		entry := &l.entries[idx]
		entry.Attempts++
		entry.Timestamp = ts
		entry.UserAnswer = slices.Clone(userAnswer)
		entry.CorrectAnswer = slices.Clone(question.Answer)
	} else {
		l.entries = append(l.entries, models.WrongQuestion{
			QuestionID:    question.ID,
			UserAnswer:    slices.Clone(userAnswer),
			CorrectAnswer: slices.Clone(question.Answer),
			Timestamp:     ts,
			Attempts:      1,
		})
	}

	return l.repo.SaveWrongQuestions(ctx, l.entries)
}

// Clear empties the collection and removes its stored record.
func (l *Ledger) Clear(ctx context.Context) error {
	l.entries = nil
	return l.repo.ClearWrongQuestions(ctx)
}

func (l *Ledger) Find(id models.QuestionID) (models.WrongQuestion, bool) {
	if idx := l.indexOf(id); idx >= 0 {
		return l.entries[idx], true
	}
	return models.WrongQuestion{}, false
}

func (l *Ledger) Entries() []models.WrongQuestion {
	return slices.Clone(l.entries)
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) indexOf(id models.QuestionID) int {
	return slices.IndexFunc(l.entries, func(wq models.WrongQuestion) bool {
		return wq.QuestionID == id
	})
}

// RecordAnswer counts one submission. Stats are persisted separately with SaveStats.
func (l *Ledger) RecordAnswer(correct bool) {
	l.stats.TotalAnswered++
	if correct {
		l.stats.CorrectAnswers++
	}
}

func (l *Ledger) AddStudyTime(minutes int) {
	if minutes > 0 {
		l.stats.StudyTime += minutes
	}
}

func (l *Ledger) SaveStats(ctx context.Context) error {
	return l.repo.SaveStats(ctx, l.stats)
}

func (l *Ledger) Stats() models.Stats {
	return l.stats
}

// CorrectRate is the rounded share of correct answers in percent.
func (l *Ledger) CorrectRate() int {
	if l.stats.TotalAnswered == 0 {
		return 0
	}
	return int(math.Round(float64(l.stats.CorrectAnswers) / float64(l.stats.TotalAnswered) * 100))
}
