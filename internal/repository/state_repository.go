package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"quiz-trainer/internal/constants"
	"quiz-trainer/internal/models"
)

// ErrCorruptProgress marks a stored session snapshot that cannot be parsed.
// StateRepository recovers from it by discarding the snapshot.
var ErrCorruptProgress = errors.New("stored quiz progress is corrupt")

// Store is an opaque string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// StateRepository owns the four records that make up a learner's state. Each
// record is read and written as a whole; records are not updated together.
type StateRepository struct {
	store     Store
	namespace string
}

func NewStateRepository(store Store, namespace string) *StateRepository {
	return &StateRepository{
		store:     store,
		namespace: namespace,
	}
}

func (r *StateRepository) key(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + ":" + name
}

func (r *StateRepository) LoadQuestions(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	if _, err := r.load(ctx, constants.KeyQuestions, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *StateRepository) SaveQuestions(ctx context.Context, questions []models.Question) error {
	return r.save(ctx, constants.KeyQuestions, questions)
}

func (r *StateRepository) LoadWrongQuestions(ctx context.Context) ([]models.WrongQuestion, error) {
	var wrong []models.WrongQuestion
	if _, err := r.load(ctx, constants.KeyWrongQuestions, &wrong); err != nil {
		return nil, err
	}
	return wrong, nil
}

func (r *StateRepository) SaveWrongQuestions(ctx context.Context, wrong []models.WrongQuestion) error {
	return r.save(ctx, constants.KeyWrongQuestions, wrong)
}

func (r *StateRepository) ClearWrongQuestions(ctx context.Context) error {
	if err := r.store.Remove(ctx, r.key(constants.KeyWrongQuestions)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", constants.KeyWrongQuestions, err)
	}
	return nil
}

// LoadStats merges the stored stats onto defaults: fields missing from the
// stored record keep their default values.
func (r *StateRepository) LoadStats(ctx context.Context, defaults models.Stats) (models.Stats, error) {
	stats := defaults
	if _, err := r.load(ctx, constants.KeyStats, &stats); err != nil {
		return defaults, err
	}
	return stats, nil
}

func (r *StateRepository) SaveStats(ctx context.Context, stats models.Stats) error {
	return r.save(ctx, constants.KeyStats, stats)
}

// LoadProgress returns the stored session snapshot. A snapshot that fails to
// parse is removed and reported as absent.
func (r *StateRepository) LoadProgress(ctx context.Context) (*models.Progress, error) {
	var progress models.Progress
	found, err := r.load(ctx, constants.KeyQuizProgress, &progress)
	if errors.Is(err, ErrCorruptProgress) {
		log.Printf("Discarding stored quiz progress: %v", err)
		if err := r.ClearProgress(ctx); err != nil {
			log.Printf("Failed to remove corrupt quiz progress: %v", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if progress.CurrentMode == "" {
		progress.CurrentMode = constants.ModeRandom
	}
	return &progress, nil
}

// SaveProgress writes the snapshot. Snapshots without questions are not
// written.
func (r *StateRepository) SaveProgress(ctx context.Context, progress *models.Progress) error {
	if progress == nil || len(progress.CurrentQuizQuestions) == 0 {
		return nil
	}
	return r.save(ctx, constants.KeyQuizProgress, progress)
}

func (r *StateRepository) ClearProgress(ctx context.Context) error {
	if err := r.store.Remove(ctx, r.key(constants.KeyQuizProgress)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", constants.KeyQuizProgress, err)
	}
	return nil
}

// HasProgress reports whether a stored snapshot can be resumed. It never
// fails: unreadable snapshots count as not resumable.
func (r *StateRepository) HasProgress(ctx context.Context) bool {
	var progress models.Progress
	found, err := r.load(ctx, constants.KeyQuizProgress, &progress)
	if err != nil || !found {
		return false
	}
	return progress.Resumable()
}

func (r *StateRepository) load(ctx context.Context, name string, dst any) (bool, error) {
	raw, found, err := r.store.Get(ctx, r.key(name))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		if name == constants.KeyQuizProgress {
			return true, fmt.Errorf("%w: %v", ErrCorruptProgress, err)
		}
		return true, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}

func (r *StateRepository) save(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := r.store.Set(ctx, r.key(name), string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
