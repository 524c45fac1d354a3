package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quiz-trainer/internal/dto"
	"quiz-trainer/internal/middleware"
	"quiz-trainer/internal/models"
	"quiz-trainer/internal/parser"
	"quiz-trainer/internal/repository"
	"quiz-trainer/internal/service"
	"quiz-trainer/internal/session"
	"quiz-trainer/pkg/cache"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewMemoryStore()
	svc := service.NewQuizService(repository.NewStateRepository(store, ""), nil, nil, 0)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	health := NewHealthHandler(store)
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	NewQuizHandler(svc).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

const bankJSON = `[
	{"id": 1, "type": "single", "question": "2+2?", "options": [{"key":"A","value":"3"},{"key":"B","value":"4"}], "answer": "B", "score": 1},
	{"id": 2, "type": "multiple", "question": "Primes?", "options": [{"key":"A","value":"2"},{"key":"B","value":"4"},{"key":"C","value":"5"}], "answer": ["A","C"], "score": 1}
]`

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrEmptyBank))
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrEmptyLedger))
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrNoQuestionsAvailable))
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrNoCurrentQuestion))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("%w: zip: not a valid zip file", parser.ErrMalformedSource)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}

func TestStartWithoutBank(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/quiz/start", `{"mode":"random"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, "Conflict", resp.Error)
	assert.Equal(t, session.ErrEmptyBank.Error(), resp.Message)
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/quiz/start", `{"mode":"sequential"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/quiz/start", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/quiz/answer", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPut, "/bank", `{"id":1}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(router, http.MethodPut, "/bank",
		`[{"id":1,"type":"single","question":"q","options":[{"key":"A"}],"answer":"Z"}]`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/bank/upload", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/bank/import", `{}`).Code)
}

func TestImportWithoutStorage(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/bank/import", `{"object":"banks/a.xlsx"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUploadRejectsNonSpreadsheet(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "bank.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/bank/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestQuizFlow(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPut, "/bank", bankJSON)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[dto.BankLoadedResponse](t, w).Count)

	bank := decode[dto.BankResponse](t, do(router, http.MethodGet, "/bank", ""))
	assert.Equal(t, 2, bank.Count)
	assert.Equal(t, models.QuestionID("1"), bank.Questions[0].ID)

	assert.Equal(t, http.StatusConflict, do(router, http.MethodPost, "/quiz/start", `{"mode":"wrong"}`).Code)
	assert.Equal(t, http.StatusConflict, do(router, http.MethodGet, "/quiz/current", "").Code)

	w = do(router, http.MethodPost, "/quiz/start", `{"mode":"random"}`)
	require.Equal(t, http.StatusOK, w.Code)
	current := decode[dto.QuestionResponse](t, w)
	assert.Equal(t, 1, current.Progress.Current)
	assert.Equal(t, 2, current.Progress.Total)

	assert.True(t, decode[dto.ResumableResponse](t, do(router, http.MethodGet, "/quiz/resumable", "")).Resumable)

	for {
		answer, err := json.Marshal(map[string]models.Answer{"answer": {"A"}})
		require.NoError(t, err)
		w = do(router, http.MethodPost, "/quiz/answer", string(answer))
		require.Equal(t, http.StatusOK, w.Code)
		result := decode[models.AnswerResult](t, w)
		assert.Equal(t, current.Question.ID, result.QuestionID)
		assert.False(t, result.IsCorrect)

		w = do(router, http.MethodPost, "/quiz/next", "")
		require.Equal(t, http.StatusOK, w.Code)
		next := decode[service.NextResult](t, w)
		if next.Finished {
			require.NotNil(t, next.Summary)
			assert.Equal(t, 2, next.Summary.Answered)
			break
		}
		current = dto.QuestionResponse{Question: *next.Question, Progress: next.Progress}
	}

	assert.False(t, decode[dto.ResumableResponse](t, do(router, http.MethodGet, "/quiz/resumable", "")).Resumable)
	assert.Equal(t, http.StatusConflict, do(router, http.MethodPost, "/quiz/finish", "").Code)
	assert.Equal(t, http.StatusConflict, do(router, http.MethodGet, "/quiz/progress", "").Code)

	stats := decode[models.StatsReport](t, do(router, http.MethodGet, "/stats", ""))
	assert.Equal(t, 2, stats.TotalAnswered)
	assert.Zero(t, stats.CorrectAnswers)

	wrong := decode[dto.WrongQuestionsResponse](t, do(router, http.MethodGet, "/wrong", ""))
	assert.Equal(t, 2, wrong.Count)

	w = do(router, http.MethodPost, "/quiz/start", `{"mode":"wrong"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, wrong.WrongQuestions[0].QuestionID, decode[dto.QuestionResponse](t, w).Question.ID)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/quiz/progress", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodDelete, "/quiz/progress", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodDelete, "/wrong", "").Code)
	assert.Zero(t, decode[dto.WrongQuestionsResponse](t, do(router, http.MethodGet, "/wrong", "")).Count)
}

func TestHealthAndCORS(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/ready", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
