package parser

import (
	"errors"
	"fmt"
	"strings"

	"quiz-trainer/internal/constants"
	"quiz-trainer/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(questionAnswerValidation, models.Question{})
	return v
}

// questionAnswerValidation checks that every answer key names an option and
// that only multiple-choice questions carry more than one key.
func questionAnswerValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(models.Question)

	for _, key := range q.Answer {
		if !q.HasOption(key) {
			sl.ReportError(q.Answer, "Answer", "answer", "answer_in_options", key)
			return
		}
	}

	if q.Type != constants.QuestionTypeMultiple && len(q.Answer) != 1 {
		sl.ReportError(q.Answer, "Answer", "answer", "single_key", "")
	}
}

// ValidateQuestions checks a bank supplied as JSON against the same rules the
// row parser enforces. Ids must be unique.
func ValidateQuestions(questions []models.Question) error {
	seen := make(map[models.QuestionID]bool, len(questions))

	for i, q := range questions {
		if err := validate.Struct(q); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("%w: question %d: %v", ErrMalformedSource, i, err)
			}

			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: question %d: %s", ErrMalformedSource, i, strings.Join(fields, ", "))
		}

		if seen[q.ID] {
			return fmt.Errorf("%w: question %d: duplicate id %s", ErrMalformedSource, i, q.ID)
		}
		seen[q.ID] = true
	}

	return nil
}
