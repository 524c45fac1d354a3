package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"quiz-trainer/internal/dto"
	"quiz-trainer/internal/models"
	"quiz-trainer/internal/parser"
	"quiz-trainer/internal/service"
	"quiz-trainer/internal/session"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 32 << 20

type QuizHandler struct {
	quizService *service.QuizService
}

func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyBank),
		errors.Is(err, session.ErrEmptyLedger),
		errors.Is(err, session.ErrNoQuestionsAvailable),
		errors.Is(err, session.ErrNoCurrentQuestion),
		errors.Is(err, session.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, parser.ErrMalformedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	dto.JsonError(c, status, err.Error())
}

func (h *QuizHandler) UploadBank(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Missing file")
		return
	}
	if fileHeader.Size > maxUploadSize {
		dto.JsonError(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Failed to open file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Failed to read file")
		return
	}

	count, err := h.quizService.ImportWorkbook(c.Request.Context(), data)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BankLoadedResponse{
		Count:   count,
		Message: fmt.Sprintf("Loaded %d questions", count),
	})
}

func (h *QuizHandler) ImportBank(c *gin.Context) {
	var req dto.ImportBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	count, err := h.quizService.ImportFromStorage(c.Request.Context(), req.Bucket, req.Object)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BankLoadedResponse{
		Count:   count,
		Message: fmt.Sprintf("Loaded %d questions", count),
	})
}

func (h *QuizHandler) ReplaceBank(c *gin.Context) {
	var questions []models.Question
	if err := c.ShouldBindJSON(&questions); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.quizService.SetQuestions(c.Request.Context(), questions); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BankLoadedResponse{
		Count:   len(questions),
		Message: fmt.Sprintf("Loaded %d questions", len(questions)),
	})
}

func (h *QuizHandler) GetBank(c *gin.Context) {
	questions := h.quizService.Questions()
	if questions == nil {
		questions = []models.Question{}
	}

	c.JSON(http.StatusOK, dto.BankResponse{
		Questions: questions,
		Count:     len(questions),
	})
}

func (h *QuizHandler) StartQuiz(c *gin.Context) {
	var req dto.StartQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	q, err := h.quizService.StartQuiz(c.Request.Context(), req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QuestionResponse{
		Question: q,
		Progress: h.quizService.QuestionProgress(),
	})
}

func (h *QuizHandler) GetCurrentQuestion(c *gin.Context) {
	q, ok := h.quizService.CurrentQuestion()
	if !ok {
		respondError(c, session.ErrNoCurrentQuestion)
		return
	}

	c.JSON(http.StatusOK, dto.QuestionResponse{
		Question: q,
		Progress: h.quizService.QuestionProgress(),
	})
}

func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.quizService.SubmitAnswer(c.Request.Context(), req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *QuizHandler) NextQuestion(c *gin.Context) {
	next, err := h.quizService.NextQuestion(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, next)
}

func (h *QuizHandler) FinishQuiz(c *gin.Context) {
	summary, err := h.quizService.FinishQuiz(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *QuizHandler) GetProgress(c *gin.Context) {
	progress := h.quizService.Progress()
	if progress == nil {
		respondError(c, session.ErrNoActiveSession)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot": progress,
		"progress": h.quizService.QuestionProgress(),
	})
}

func (h *QuizHandler) GetResumable(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ResumableResponse{
		Resumable: h.quizService.HasResumableSession(c.Request.Context()),
	})
}

func (h *QuizHandler) DiscardProgress(c *gin.Context) {
	if err := h.quizService.DiscardProgress(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Progress discarded"})
}

func (h *QuizHandler) GetWrongQuestions(c *gin.Context) {
	wrong := h.quizService.WrongQuestions()

	c.JSON(http.StatusOK, dto.WrongQuestionsResponse{
		WrongQuestions: wrong,
		Count:          len(wrong),
	})
}

func (h *QuizHandler) ClearWrongQuestions(c *gin.Context) {
	if err := h.quizService.ClearWrongQuestions(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Wrong questions cleared"})
}

func (h *QuizHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.quizService.Stats())
}

// RegisterRoutes mounts the quiz API on router.
func (h *QuizHandler) RegisterRoutes(router gin.IRouter) {
	bankGroup := router.Group("/bank")
	{
		bankGroup.POST("/upload", h.UploadBank)
		bankGroup.POST("/import", h.ImportBank)
		bankGroup.PUT("", h.ReplaceBank)
		bankGroup.GET("", h.GetBank)
	}

	quizGroup := router.Group("/quiz")
	{
		quizGroup.POST("/start", h.StartQuiz)
		quizGroup.GET("/current", h.GetCurrentQuestion)
		quizGroup.POST("/answer", h.SubmitAnswer)
		quizGroup.POST("/next", h.NextQuestion)
		quizGroup.POST("/finish", h.FinishQuiz)
		quizGroup.GET("/progress", h.GetProgress)
		quizGroup.GET("/resumable", h.GetResumable)
		quizGroup.DELETE("/progress", h.DiscardProgress)
	}

	router.GET("/wrong", h.GetWrongQuestions)
	router.DELETE("/wrong", h.ClearWrongQuestions)
	router.GET("/stats", h.GetStats)
}
