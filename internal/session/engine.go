package session

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"quiz-trainer/internal/constants"
	"quiz-trainer/internal/ledger"
	"quiz-trainer/internal/models"

	"github.com/google/uuid"
)

var (
	ErrEmptyBank            = errors.New("no questions loaded, upload a question bank first")
	ErrEmptyLedger          = errors.New("wrong-question ledger is empty, practise in random mode first")
	ErrNoQuestionsAvailable = errors.New("no questions available for this session")
	ErrNoCurrentQuestion    = errors.New("no current question")
	ErrNoActiveSession      = errors.New("no active session")
	ErrInvalidMode          = errors.New("invalid quiz mode")
)

type Repository interface {
	SaveProgress(ctx context.Context, progress *models.Progress) error
	ClearProgress(ctx context.Context) error
	HasProgress(ctx context.Context) bool
}

// Engine runs one session at a time over a loaded bank. It is Idle while
// progress is nil and Running otherwise. Engine is not safe for concurrent use.
type Engine struct {
	repo     Repository
	ledger   *ledger.Ledger
	bank     []models.Question
	progress *models.Progress

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	newID   func() string
}

func NewEngine(repo Repository, l *ledger.Ledger) *Engine {
	return &Engine{
		repo:    repo,
		ledger:  l,
		now:     time.Now,
		shuffle: rand.Shuffle,
		newID:   uuid.NewString,
	}
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetRand makes random-mode ordering reproducible.
func (e *Engine) SetRand(r *rand.Rand) {
	e.shuffle = r.Shuffle
}

// SetBank replaces the loaded bank. A running session keeps its own copy of
// the questions it was started with.
func (e *Engine) SetBank(questions []models.Question) {
	e.bank = questions
}

func (e *Engine) Bank() []models.Question {
	return e.bank
}

func (e *Engine) Running() bool {
	return e.progress != nil
}

// Start builds a new session and persists its snapshot. A failed start leaves
// the engine unchanged.
func (e *Engine) Start(ctx context.Context, mode string) error {
	if len(e.bank) == 0 {
		return ErrEmptyBank
	}

	var questions []models.Question
	switch mode {
	case constants.ModeRandom:
		questions = slices.Clone(e.bank)
		e.shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	case constants.ModeWrong:
		if e.ledger.Len() == 0 {
			return ErrEmptyLedger
		}
		questions = e.wrongQuestions()
	default:
		return ErrInvalidMode
	}

	if len(questions) == 0 {
		return ErrNoQuestionsAvailable
	}

	progress := &models.Progress{
		SessionID:            e.newID(),
		CurrentQuestionIndex: 0,
		CurrentMode:          mode,
		UserAnswers:          []models.UserAnswer{},
		QuizStartTime:        e.now().UnixMilli(),
		CurrentQuizQuestions: questions,
	}
	if err := e.repo.SaveProgress(ctx, progress); err != nil {
		return err
	}

	e.progress = progress
	return nil
}

// wrongQuestions maps ledger entries to bank questions in ledger order,
// skipping ids no longer present in the bank.
func (e *Engine) wrongQuestions() []models.Question {
	var questions []models.Question
	for _, entry := range e.ledger.Entries() {
		idx := slices.IndexFunc(e.bank, func(q models.Question) bool {
			return q.ID == entry.QuestionID
		})
		if idx >= 0 {
			questions = append(questions, e.bank[idx])
		}
	}
	return questions
}

func (e *Engine) CurrentQuestion() (models.Question, bool) {
	if e.progress == nil {
		return models.Question{}, false
	}
	idx := e.progress.CurrentQuestionIndex
	if idx < 0 || idx >= len(e.progress.CurrentQuizQuestions) {
		return models.Question{}, false
	}
	return e.progress.CurrentQuizQuestions[idx], true
}

// Submit judges answer against the current question, updates stats and the
// ledger, and persists stats and the snapshot.
func (e *Engine) Submit(ctx context.Context, answer models.Answer) (bool, error) {
	question, ok := e.CurrentQuestion()
	if !ok {
		return false, ErrNoCurrentQuestion
	}

	correct := Evaluate(question, answer)

	e.progress.UserAnswers = append(e.progress.UserAnswers, models.UserAnswer{
		QuestionID: question.ID,
		UserAnswer: slices.Clone(answer),
		IsCorrect:  correct,
		Timestamp:  e.now().UnixMilli(),
	})

	var errs []error
	e.ledger.RecordAnswer(correct)
	if !correct {
		errs = append(errs, e.ledger.RecordMiss(ctx, question, answer))
	}
	errs = append(errs, e.ledger.SaveStats(ctx))
	errs = append(errs, e.repo.SaveProgress(ctx, e.progress))

	return correct, errors.Join(errs...)
}

// Evaluate reports whether answer is correct for question. Multiple-choice
// answers match when both key lists are equal after sorting; duplicate keys
// are kept. Single and judge answers must be exactly the one correct key.
func Evaluate(question models.Question, answer models.Answer) bool {
	if question.Type == constants.QuestionTypeMultiple {
		submitted := slices.Clone(answer)
		expected := slices.Clone(question.Answer)
		slices.Sort(submitted)
		slices.Sort(expected)
		return slices.Equal(submitted, expected)
	}

	return len(answer) == 1 && len(question.Answer) == 1 && answer[0] == question.Answer[0]
}

// Advance moves to the next question and persists the snapshot. It reports
// whether a question remains; when it does not, the caller should Finish.
func (e *Engine) Advance(ctx context.Context) (bool, error) {
	if e.progress == nil {
		return false, ErrNoActiveSession
	}

	e.progress.CurrentQuestionIndex++
	hasNext := e.progress.CurrentQuestionIndex < len(e.progress.CurrentQuizQuestions)

	return hasNext, e.repo.SaveProgress(ctx, e.progress)
}

// Finish adds the session's elapsed minutes to the study time, persists
// stats, removes the snapshot and returns the engine to Idle.
func (e *Engine) Finish(ctx context.Context) (models.Summary, error) {
	if e.progress == nil {
		return models.Summary{}, ErrNoActiveSession
	}

	p := e.progress
	summary := models.Summary{
		SessionID: p.SessionID,
		Mode:      p.CurrentMode,
		Answered:  len(p.UserAnswers),
	}
	for _, a := range p.UserAnswers {
		if a.IsCorrect {
			summary.Correct++
		}
	}
	if summary.Answered > 0 {
		summary.Accuracy = int(math.Round(float64(summary.Correct) / float64(summary.Answered) * 100))
	}

	if p.QuizStartTime > 0 {
		elapsedMs := e.now().UnixMilli() - p.QuizStartTime
		summary.Minutes = max(int(math.Round(float64(elapsedMs)/float64(time.Minute/time.Millisecond))), 0)
		e.ledger.AddStudyTime(summary.Minutes)
	}

	e.progress = nil

	return summary, errors.Join(
		e.ledger.SaveStats(ctx),
		e.repo.ClearProgress(ctx),
	)
}

// HasResumableSession checks the stored snapshot, not the in-memory state.
func (e *Engine) HasResumableSession(ctx context.Context) bool {
	return e.repo.HasProgress(ctx)
}

// Restore puts a stored snapshot back into Running. Snapshots that do not
// point at an unanswered question are ignored.
func (e *Engine) Restore(progress *models.Progress) bool {
	if progress == nil || !progress.Resumable() {
		return false
	}
	if progress.UserAnswers == nil {
		progress.UserAnswers = []models.UserAnswer{}
	}
	e.progress = progress
	return true
}

// Discard abandons the running session, if any, and removes the snapshot.
func (e *Engine) Discard(ctx context.Context) error {
	e.progress = nil
	return e.repo.ClearProgress(ctx)
}

// Progress returns a copy of the running session's snapshot, or nil when Idle.
func (e *Engine) Progress() *models.Progress {
	if e.progress == nil {
		return nil
	}
	p := *e.progress
	p.UserAnswers = slices.Clone(e.progress.UserAnswers)
	p.CurrentQuizQuestions = slices.Clone(e.progress.CurrentQuizQuestions)
	return &p
}

func (e *Engine) QuestionProgress() models.QuestionProgress {
	if e.progress == nil || len(e.progress.CurrentQuizQuestions) == 0 {
		return models.QuestionProgress{}
	}
	current := e.progress.CurrentQuestionIndex + 1
	total := len(e.progress.CurrentQuizQuestions)
	return models.QuestionProgress{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
	}
}
