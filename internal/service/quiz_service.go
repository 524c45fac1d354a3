package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sync"
	"time"

	"quiz-trainer/internal/constants"
	"quiz-trainer/internal/ledger"
	"quiz-trainer/internal/models"
	"quiz-trainer/internal/parser"
	"quiz-trainer/internal/repository"
	"quiz-trainer/internal/session"

	"github.com/google/uuid"
)

var ErrStorageDisabled = errors.New("object storage is not configured")

type EventPublisher interface {
	PublishJSON(ctx context.Context, queueName string, event any) error
}

type BankStorage interface {
	Bucket() string
	PutWorkbook(ctx context.Context, object string, data []byte) error
	OpenWorkbook(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

const archivePrefix = "banks"

// NextResult reports where the session stands after advancing. When Finished
// is set the session has been closed and Summary describes it.
type NextResult struct {
	Finished bool                    `json:"finished"`
	Question *models.Question        `json:"question,omitempty"`
	Progress models.QuestionProgress `json:"progress"`
	Summary  *models.Summary         `json:"summary,omitempty"`
}

// QuizService serializes every operation on the bank, the ledger and the
// session engine behind one mutex.
type QuizService struct {
	mu sync.Mutex

	repo      *repository.StateRepository
	ledger    *ledger.Ledger
	engine    *session.Engine
	publisher EventPublisher
	storage   BankStorage
	timeout   time.Duration
}

// NewQuizService wires the service. publisher and storage may be nil.
func NewQuizService(
	repo *repository.StateRepository,
	publisher EventPublisher,
	storage BankStorage,
	timeout time.Duration,
) *QuizService {
	l := ledger.New(repo, nil, models.Stats{})
	return &QuizService{
		repo:      repo,
		ledger:    l,
		engine:    session.NewEngine(repo, l),
		publisher: publisher,
		storage:   storage,
		timeout:   timeout,
	}
}

func (s *QuizService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load reads the four stored records and resumes an interrupted session when
// a valid snapshot is present. It reports whether a session was resumed.
func (s *QuizService) Load(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	questions, err := s.repo.LoadQuestions(ctx)
	if err != nil {
		return false, err
	}
	wrong, err := s.repo.LoadWrongQuestions(ctx)
	if err != nil {
		return false, err
	}
	stats, err := s.repo.LoadStats(ctx, models.Stats{})
	if err != nil {
		return false, err
	}
	progress, err := s.repo.LoadProgress(ctx)
	if err != nil {
		return false, err
	}

	s.ledger = ledger.New(s.repo, wrong, stats)
	s.engine = session.NewEngine(s.repo, s.ledger)
	s.engine.SetBank(questions)

	resumed := s.engine.Restore(progress)
	log.Printf("Loaded %d questions, %d wrong questions (resumed session: %t)", len(questions), len(wrong), resumed)
	return resumed, nil
}

// SetQuestions validates and replaces the loaded bank. A running session keeps
// its questions.
func (s *QuizService) SetQuestions(ctx context.Context, questions []models.Question) error {
	if err := parser.ValidateQuestions(questions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setQuestions(ctx, questions, "")
}

func (s *QuizService) setQuestions(ctx context.Context, questions []models.Question, object string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.SaveQuestions(ctx, questions); err != nil {
		return err
	}
	s.engine.SetBank(questions)

	s.publish(ctx, constants.QueueBankLoaded, models.BankLoadedEvent{
		Count:    len(questions),
		Object:   object,
		LoadedAt: time.Now().Format(time.RFC3339),
	})
	return nil
}

// ImportWorkbook parses an uploaded spreadsheet, archives it when object
// storage is configured and makes it the loaded bank. Rows that do not parse
// are skipped, so a workbook without a valid row loads an empty bank.
func (s *QuizService) ImportWorkbook(ctx context.Context, data []byte) (int, error) {
	questions, err := parser.ParseWorkbook(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	object := s.archive(ctx, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setQuestions(ctx, questions, object); err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (s *QuizService) archive(ctx context.Context, data []byte) string {
	if s.storage == nil {
		return ""
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	object := path.Join(archivePrefix, uuid.NewString()+".xlsx")
	if err := s.storage.PutWorkbook(ctx, object, data); err != nil {
		log.Printf("Failed to archive question bank: %v", err)
		return ""
	}
	return object
}

// ImportFromStorage loads a bank from an object in storage. An empty bucket
// means the configured one.
func (s *QuizService) ImportFromStorage(ctx context.Context, bucket, object string) (int, error) {
	if s.storage == nil {
		return 0, ErrStorageDisabled
	}
	if bucket == "" {
		bucket = s.storage.Bucket()
	}

	data, err := s.download(ctx, bucket, object)
	if err != nil {
		return 0, err
	}

	questions, err := parser.ParseWorkbook(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setQuestions(ctx, questions, object); err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (s *QuizService) download(ctx context.Context, bucket, object string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rc, err := s.storage.OpenWorkbook(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

func (s *QuizService) StartQuiz(ctx context.Context, mode string) (models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.engine.Start(ctx, mode); err != nil {
		return models.Question{}, err
	}
	q, _ := s.engine.CurrentQuestion()
	return q, nil
}

func (s *QuizService) CurrentQuestion() (models.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.CurrentQuestion()
}

// SubmitAnswer judges answer against the current question. The result is
// returned even when persisting it failed.
func (s *QuizService) SubmitAnswer(ctx context.Context, answer models.Answer) (models.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, ok := s.engine.CurrentQuestion()
	if !ok {
		return models.AnswerResult{}, session.ErrNoCurrentQuestion
	}

	correct, err := s.engine.Submit(ctx, answer)
	return models.AnswerResult{
		QuestionID:    q.ID,
		IsCorrect:     correct,
		CorrectAnswer: q.Answer,
		Explanation:   q.Explanation,
	}, err
}

// NextQuestion advances the session and finishes it after the last question.
func (s *QuizService) NextQuestion(ctx context.Context) (NextResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	hasNext, err := s.engine.Advance(ctx)
	if err != nil && !s.engine.Running() {
		return NextResult{}, err
	}
	if err != nil {
		log.Printf("Failed to save quiz progress: %v", err)
	}

	if hasNext {
		q, _ := s.engine.CurrentQuestion()
		return NextResult{Question: &q, Progress: s.engine.QuestionProgress()}, nil
	}

	summary, err := s.finish(ctx)
	return NextResult{Finished: true, Summary: &summary}, err
}

func (s *QuizService) FinishQuiz(ctx context.Context) (models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.finish(ctx)
}

func (s *QuizService) finish(ctx context.Context) (models.Summary, error) {
	summary, err := s.engine.Finish(ctx)
	if errors.Is(err, session.ErrNoActiveSession) {
		return summary, err
	}

	s.publish(ctx, constants.QueueSessionFinished, summary)
	return summary, err
}

func (s *QuizService) ClearWrongQuestions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.ledger.Clear(ctx)
}

// DiscardProgress drops the running or stored session without touching stats.
func (s *QuizService) DiscardProgress(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.engine.Discard(ctx)
}

func (s *QuizService) HasResumableSession(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.engine.HasResumableSession(ctx)
}

func (s *QuizService) Questions() []models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Bank()
}

// WrongQuestions lists ledger entries in first-miss order together with the
// matching bank question.
func (s *QuizService) WrongQuestions() []models.WrongQuestionDetail {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[models.QuestionID]int)
	bank := s.engine.Bank()
	for i, q := range bank {
		byID[q.ID] = i
	}

	entries := s.ledger.Entries()
	details := make([]models.WrongQuestionDetail, 0, len(entries))
	for _, entry := range entries {
		d := models.WrongQuestionDetail{WrongQuestion: entry}
		if i, ok := byID[entry.QuestionID]; ok {
			q := bank[i]
			d.Question = &q
		}
		details = append(details, d)
	}
	return details
}

func (s *QuizService) Stats() models.StatsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.StatsReport{
		Stats:       s.ledger.Stats(),
		CorrectRate: s.ledger.CorrectRate(),
	}
}

func (s *QuizService) Progress() *models.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Progress()
}

func (s *QuizService) QuestionProgress() models.QuestionProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.QuestionProgress()
}

func (s *QuizService) publish(ctx context.Context, queueName string, event any) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishJSON(ctx, queueName, event); err != nil {
		log.Printf("Failed to publish %s event: %v", queueName, err)
	}
}
