package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/Tutor-DA/quiz-api/internal/engine"
	"github.com/Tutor-DA/quiz-api/internal/service"
	"github.com/Tutor-DA/quiz-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения live-режима
type WSHandler struct {
	wsHub        *websocket.Hub
	wsManager    *websocket.Manager
	runner       *service.SessionRunner
	clientConfig websocket.ClientConfig
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	runner *service.SessionRunner,
) *WSHandler {
	handler := &WSHandler{
		wsHub:        wsHub,
		wsManager:    wsManager,
		runner:       runner,
		clientConfig: websocket.DefaultClientConfig(),
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

// SetClientConfig задает параметры клиентских соединений (буферы, пинги,
// лимиты), собранные из конфигурации приложения
func (h *WSHandler) SetClientConfig(cfg websocket.ClientConfig) {
	h.clientConfig = cfg
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Пустой Origin - не браузерный клиент (мобильное приложение, curl).
		// Разрешаем такие подключения
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		allowedOrigins := []string{
			"http://localhost:5173",
			"http://localhost:8000",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Участник идентифицируется query-параметром participant_id.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	participantID := c.Query("participant_id")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing participant_id parameter"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upgrade: %v", err)})
		return
	}

	log.Printf("WebSocket: Connection upgraded for participant %s", participantID)

	client := websocket.NewClientWithConfig(h.wsHub, conn, participantID, h.clientConfig)
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики входящих сообщений клиентов
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.USER_READY, h.handleUserReady)
	h.wsManager.RegisterHandler(websocket.USER_ANSWER, h.handleUserAnswer)
	h.wsManager.RegisterHandler(websocket.USER_HEARTBEAT, h.handleUserHeartbeat)
}

// userReadyPayload - подписка клиента на комнату сессии или викторины
type userReadyPayload struct {
	SessionID string `json:"session_id"`
	QuizID    uint   `json:"quiz_id"`
}

// handleUserReady подключает клиента к комнате его сессии. Наблюдатели
// передают quiz_id и получают только обновления лидерборда.
func (h *WSHandler) handleUserReady(data json.RawMessage, client *websocket.Client) error {
	var payload userReadyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.wsManager.SendErrorToClient(client, "invalid_payload", "Invalid user:ready payload")
		return nil
	}

	switch {
	case payload.SessionID != "":
		h.wsManager.SubscribeClientToSession(client, payload.SessionID)
		if payload.QuizID != 0 {
			h.runner.SetConnectionState(payload.QuizID, client.UserID, engine.ConnectionStateConnected)
		}
	case payload.QuizID != 0:
		h.wsManager.SubscribeClientToSession(client, service.QuizRoomID(payload.QuizID))
	default:
		h.wsManager.SendErrorToClient(client, "invalid_payload", "user:ready requires session_id or quiz_id")
	}
	return nil
}

// userAnswerPayload - ответ участника на текущий вопрос
type userAnswerPayload struct {
	SessionID string `json:"session_id"`
	OptionID  int    `json:"option_id"`
}

// handleUserAnswer фиксирует ответ участника, пришедший по WebSocket.
// Ошибки движка отправляются клиенту событием server:error, соединение
// не закрывается: устаревший ответ - это нормальный ход игры.
func (h *WSHandler) handleUserAnswer(data json.RawMessage, client *websocket.Client) error {
	var payload userAnswerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.wsManager.SendErrorToClient(client, "invalid_payload", "Invalid user:answer payload")
		return nil
	}

	if err := h.runner.SubmitAnswer(payload.SessionID, client.UserID, payload.OptionID); err != nil {
		h.wsManager.SendErrorToClient(client, "answer_rejected", err.Error())
	}
	return nil
}

// heartbeatPayload - подтверждение присутствия участника
type heartbeatPayload struct {
	QuizID uint `json:"quiz_id"`
}

// handleUserHeartbeat помечает участника подключенным в лидерборде викторины
func (h *WSHandler) handleUserHeartbeat(data json.RawMessage, client *websocket.Client) error {
	var payload heartbeatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	if payload.QuizID != 0 {
		h.runner.SetConnectionState(payload.QuizID, client.UserID, engine.ConnectionStateConnected)
	}
	return nil
}
