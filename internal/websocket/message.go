package websocket

import "quiz-trainer/internal/models"

type MessageType string

const (
	// Client -> Server
	MessageTypeStart  MessageType = "start_quiz"
	MessageTypeAnswer MessageType = "answer"
	MessageTypeNext   MessageType = "next"
	MessageTypeFinish MessageType = "finish"
	MessageTypePing   MessageType = "ping"

	// Server -> Client
	MessageTypeQuestion     MessageType = "question"
	MessageTypeAnswerResult MessageType = "answer_result"
	MessageTypeQuizFinished MessageType = "quiz_finished"
	MessageTypeError        MessageType = "error"
	MessageTypePong         MessageType = "pong"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

type StartPayload struct {
	Mode string `json:"mode"`
}

type AnswerPayload struct {
	Answer models.Answer `json:"answer"`
}

type QuestionPayload struct {
	Question       QuestionData `json:"question"`
	QuestionIndex  int          `json:"question_index"`
	TotalQuestions int          `json:"total_questions"`
	Mode           string       `json:"mode"`
}

// QuestionData is a question as shown before it is answered.
type QuestionData struct {
	ID       models.QuestionID `json:"id"`
	Type     string            `json:"type"`
	Text     string            `json:"text"`
	Options  []models.Option   `json:"options"`
	Category string            `json:"category,omitempty"`
	Score    float64           `json:"score"`
}

type AnswerResultPayload struct {
	QuestionID    models.QuestionID `json:"question_id"`
	IsCorrect     bool              `json:"is_correct"`
	CorrectAnswer models.Answer     `json:"correct_answer"`
	Explanation   string            `json:"explanation,omitempty"`
}

type QuizFinishedPayload struct {
	Summary     models.Summary `json:"summary"`
	CorrectRate int            `json:"correct_rate"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newQuestionData(q models.Question) QuestionData {
	return QuestionData{
		ID:       q.ID,
		Type:     q.Type,
		Text:     q.Question,
		Options:  q.Options,
		Category: q.Category,
		Score:    q.Score,
	}
}
