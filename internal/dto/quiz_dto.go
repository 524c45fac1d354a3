package dto

import "quiz-trainer/internal/models"

type ImportBankRequest struct {
	Bucket string `json:"bucket"`
	Object string `json:"object" binding:"required"`
}

type BankLoadedResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type BankResponse struct {
	Questions []models.Question `json:"questions"`
	Count     int               `json:"count"`
}

type StartQuizRequest struct {
	Mode string `json:"mode" binding:"required,oneof=random wrong"`
}

type SubmitAnswerRequest struct {
	Answer models.Answer `json:"answer" binding:"required"`
}

type QuestionResponse struct {
	Question models.Question         `json:"question"`
	Progress models.QuestionProgress `json:"progress"`
}

type ResumableResponse struct {
	Resumable bool `json:"resumable"`
}

type WrongQuestionsResponse struct {
	WrongQuestions []models.WrongQuestionDetail `json:"wrongQuestions"`
	Count          int                          `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
