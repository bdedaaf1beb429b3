package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tutor-DA/quiz-api/internal/engine"
	"github.com/Tutor-DA/quiz-api/internal/handler/dto"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
	"github.com/Tutor-DA/quiz-api/internal/service"
)

// SessionHandler обрабатывает REST API сессий: запуск, ответы, переходы,
// отмена и чтение состояния. Live-клиенты получают то же самое через
// WebSocket-события, REST остается для solo-режима и восстановления
// состояния после переподключения.
type SessionHandler struct {
	runner        *service.SessionRunner
	resultService *service.ResultService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(
	runner *service.SessionRunner,
	resultService *service.ResultService,
) *SessionHandler {
	return &SessionHandler{
		runner:        runner,
		resultService: resultService,
	}
}

// StartSessionRequest представляет запрос на запуск сессии
type StartSessionRequest struct {
	QuizID        uint   `json:"quiz_id" binding:"required"`
	ParticipantID string `json:"participant_id" binding:"required,min=1,max=64"`
	DisplayName   string `json:"display_name" binding:"omitempty,max=50"`
}

// StartSession запускает новую сессию викторины.
// Первый вопрос активируется сразу, таймер начинает тикать.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.ParticipantID
	}

	sessionID, err := h.runner.StartSession(req.QuizID, req.ParticipantID, displayName)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	snapshot, err := h.runner.GetSnapshot(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSnapshotResponse(snapshot))
}

// GetSession возвращает срез состояния активной сессии
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	snapshot, err := h.runner.GetSnapshot(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSnapshotResponse(snapshot))
}

// SubmitAnswerRequest представляет ответ участника на текущий вопрос
type SubmitAnswerRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	OptionID      int    `json:"option_id" binding:"required"`
}

// SubmitAnswer фиксирует ответ участника на текущий вопрос
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.runner.SubmitAnswer(sessionID, req.ParticipantID, req.OptionID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	snapshot, err := h.runner.GetSnapshot(sessionID)
	if err != nil {
		// Сессия могла завершиться сразу после ответа на последний вопрос
		c.JSON(http.StatusOK, gin.H{"message": "Answer accepted"})
		return
	}

	c.JSON(http.StatusOK, dto.NewSnapshotResponse(snapshot))
}

// AdvanceRequest представляет запрос на переход к следующему вопросу
type AdvanceRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// Advance переводит сессию к следующему вопросу (при выключенном авто-переходе)
func (h *SessionHandler) Advance(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.runner.Advance(sessionID, req.ParticipantID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Advanced"})
}

// CancelSession отменяет сессию. Прогресс не архивируется.
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.runner.CancelSession(sessionID, req.ParticipantID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session cancelled"})
}

// GetSessionResult возвращает заархивированный итог завершенной сессии
func (h *SessionHandler) GetSessionResult(c *gin.Context) {
	sessionID := c.Param("session_id")

	result, err := h.resultService.GetSessionResult(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewResultResponse(result))
}

// GetSessionAttempts возвращает заархивированные попытки сессии
func (h *SessionHandler) GetSessionAttempts(c *gin.Context) {
	sessionID := c.Param("session_id")

	attempts, err := h.resultService.GetSessionAttempts(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	resp := make([]dto.AttemptResponse, 0, len(attempts))
	for i := range attempts {
		resp = append(resp, dto.NewAttemptResponse(&attempts[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// GetLiveLeaderboard возвращает текущий срез живого лидерборда викторины
func (h *SessionHandler) GetLiveLeaderboard(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	entries := h.runner.Leaderboard(quizID)
	c.JSON(http.StatusOK, gin.H{
		"quiz_id": quizID,
		"entries": dto.NewLeaderboardResponse(entries),
	})
}

// handleSessionError преобразует ошибки раннера и движка в HTTP-статусы
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotSessionOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQuizHasNoQuestions),
		errors.Is(err, engine.ErrInvalidOption),
		errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrSessionTerminated),
		errors.Is(err, engine.ErrSessionNotStarted),
		errors.Is(err, engine.ErrSessionAlreadyStarted),
		errors.Is(err, engine.ErrQuestionNotRevealed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
