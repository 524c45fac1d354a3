package parser

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"quiz-trainer/internal/constants"
	"quiz-trainer/internal/models"

	"github.com/xuri/excelize/v2"
)

var ErrMalformedSource = errors.New("source cannot be decoded as a spreadsheet")

// Column positions of the bank layout. Columns 10-12 are unused.
const (
	colID          = 0
	colCategory    = 3
	colTypeLabel   = 4
	colPrompt      = 5
	colOptions     = 6
	colAnswer      = 7
	colSource      = 8
	colScore       = 9
	colExplanation = 13

	minColumns = 8
)

// DecodeWorkbook reads the first sheet of a spreadsheet into raw rows.
func DecodeWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedSource)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	return rows, nil
}

// ParseWorkbook decodes a spreadsheet and parses its rows into questions.
func ParseWorkbook(r io.Reader) ([]models.Question, error) {
	rows, err := DecodeWorkbook(r)
	if err != nil {
		return nil, err
	}
	return ParseRows(rows), nil
}

// ParseRows turns raw bank rows into questions. The first row is a header.
// Malformed rows are dropped without error.
func ParseRows(rows [][]string) []models.Question {
	questions := make([]models.Question, 0, len(rows))
	seen := make(map[models.QuestionID]bool)

	for i := 1; i < len(rows); i++ {
		q, ok := parseRow(rows[i], len(questions)+1)
		if !ok || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}

	return questions
}

func parseRow(row []string, position int) (models.Question, bool) {
	if len(row) < minColumns {
		return models.Question{}, false
	}

	prompt := strings.TrimSpace(row[colPrompt])
	optionsRaw := strings.TrimSpace(row[colOptions])
	answerRaw := strings.TrimSpace(row[colAnswer])
	if prompt == "" || optionsRaw == "" || answerRaw == "" {
		return models.Question{}, false
	}

	q := models.Question{
		ID:          models.QuestionID(strings.TrimSpace(row[colID])),
		Type:        questionType(row[colTypeLabel]),
		Question:    prompt,
		Options:     parseOptions(row[colOptions]),
		Category:    strings.TrimSpace(cell(row, colCategory)),
		Source:      strings.TrimSpace(cell(row, colSource)),
		Explanation: strings.TrimSpace(cell(row, colExplanation)),
		Score:       parseScore(cell(row, colScore)),
	}
	if q.ID == "" {
		q.ID = models.QuestionID(strconv.Itoa(position))
	}

	if q.Type == constants.QuestionTypeMultiple {
		q.Answer = splitMultipleAnswer(answerRaw)
	} else {
		q.Answer = models.Answer{answerRaw}
	}

	for _, key := range q.Answer {
		if !q.HasOption(key) {
			return models.Question{}, false
		}
	}

	return q, true
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func questionType(label string) string {
	switch {
	case strings.Contains(label, constants.TypeLabelMultiple):
		return constants.QuestionTypeMultiple
	case strings.Contains(label, constants.TypeLabelJudge):
		return constants.QuestionTypeJudge
	default:
		return constants.QuestionTypeSingle
	}
}

// parseOptions splits "A-text|B-text" into options. A token is split on the
// first '-', else on the first '.', else the whole token is the key.
func parseOptions(raw string) []models.Option {
	tokens := strings.Split(raw, "|")
	options := make([]models.Option, 0, len(tokens))

	for _, token := range tokens {
		var key, value string
		switch {
		case strings.Contains(token, "-"):
			parts := strings.Split(token, "-")
			key, value = parts[0], parts[1]
		case strings.Contains(token, "."):
			parts := strings.Split(token, ".")
			key, value = parts[0], parts[1]
		default:
			key = token
		}
		options = append(options, models.Option{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}

	return options
}

// splitMultipleAnswer treats every character as one option key.
func splitMultipleAnswer(raw string) models.Answer {
	keys := make([]string, 0, len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		keys = append(keys, string(r))
	}
	slices.Sort(keys)
	return models.Answer(slices.Compact(keys))
}

func parseScore(raw string) float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || score <= 0 {
		return 1
	}
	return score
}
