package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// HubInterface описывает возможности хаба, необходимые Manager'у.
type HubInterface interface {
	// BroadcastJSON отправляет структуру JSON всем клиентам
	BroadcastJSON(v interface{}) error

	// SendJSONToUser отправляет структуру JSON конкретному пользователю
	SendJSONToUser(userID string, v interface{}) error

	// SendToUser отправляет байтовое сообщение конкретному пользователю
	SendToUser(userID string, message []byte) bool

	// BroadcastToSession отправляет сообщение всем участникам сессии
	BroadcastToSession(sessionID string, message []byte)

	// SubscribeToSession привязывает клиента к комнате сессии
	SubscribeToSession(client *Client, sessionID string)

	// UnsubscribeFromSession отвязывает клиента от его текущей сессии
	UnsubscribeFromSession(client *Client)

	// ActiveParticipants возвращает ID участников, подключенных к сессии
	ActiveParticipants(sessionID string) []string

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}

// Hub управляет активными WebSocket-клиентами и комнатами сессий.
// Каждая live-сессия викторины образует отдельную комнату, рассылка
// события сессии затрагивает только ее участников.
type Hub struct {
	mu sync.RWMutex

	// Все подключенные клиенты
	clients map[*Client]bool

	// Клиенты по ID пользователя (у пользователя может быть несколько соединений)
	userClients map[string]map[*Client]bool

	// Комнаты сессий: sessionID -> клиенты
	sessionClients map[string]map[*Client]bool

	// Каналы регистрации и отписки клиентов
	register   chan *Client
	unregister chan *Client

	// Канал для широковещательной рассылки
	broadcast chan []byte

	done chan struct{}
}

// Размер буфера широковещательного канала по умолчанию
const defaultBroadcastBuffer = 256

// NewHub создает новый хаб с буфером рассылки по умолчанию
func NewHub() *Hub {
	return NewHubWithBuffer(defaultBroadcastBuffer)
}

// NewHubWithBuffer создает новый хаб с указанным размером буфера рассылки
func NewHubWithBuffer(broadcastBuffer int) *Hub {
	if broadcastBuffer <= 0 {
		broadcastBuffer = defaultBroadcastBuffer
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		userClients:    make(map[string]map[*Client]bool),
		sessionClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan []byte, broadcastBuffer),
		done:           make(chan struct{}),
	}
}

// Run запускает основной цикл хаба. Должен вызываться в отдельной горутине.
func (h *Hub) Run() {
	log.Printf("[Hub] Запущен основной цикл")
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastAll(message)

		case <-h.done:
			log.Printf("[Hub] Основной цикл остановлен")
			return
		}
	}
}

// Close останавливает цикл хаба и закрывает все клиентские соединения
func (h *Hub) Close() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
	h.userClients = make(map[string]map[*Client]bool)
	h.sessionClients = make(map[string]map[*Client]bool)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	count := len(h.clients)
	h.mu.Unlock()

	// Сигнализируем клиенту, что регистрация завершена
	select {
	case client.registrationComplete <- struct{}{}:
	default:
	}

	log.Printf("[Hub] Клиент %s (Conn: %s) зарегистрирован. Всего клиентов: %d",
		client.UserID, client.ConnectionID, count)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	if conns, ok := h.userClients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	if sessionID := client.GetSessionID(); sessionID != "" {
		h.removeFromSessionLocked(client, sessionID)
	}

	client.closeSend()
	log.Printf("[Hub] Клиент %s (Conn: %s) отключен. Всего клиентов: %d",
		client.UserID, client.ConnectionID, len(h.clients))
}

// SubscribeToSession привязывает клиента к комнате сессии.
// Клиент может состоять только в одной комнате, предыдущая подписка снимается.
func (h *Hub) SubscribeToSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := client.GetSessionID(); prev != "" && prev != sessionID {
		h.removeFromSessionLocked(client, prev)
	}

	if _, ok := h.sessionClients[sessionID]; !ok {
		h.sessionClients[sessionID] = make(map[*Client]bool)
	}
	h.sessionClients[sessionID][client] = true
	client.SetSessionID(sessionID)

	log.Printf("[Hub] Клиент %s подписан на сессию %s (участников: %d)",
		client.UserID, sessionID, len(h.sessionClients[sessionID]))
}

// UnsubscribeFromSession отвязывает клиента от его текущей сессии
func (h *Hub) UnsubscribeFromSession(client *Client) {
	sessionID := client.GetSessionID()
	if sessionID == "" {
		return
	}

	h.mu.Lock()
	h.removeFromSessionLocked(client, sessionID)
	h.mu.Unlock()
}

func (h *Hub) removeFromSessionLocked(client *Client, sessionID string) {
	if room, ok := h.sessionClients[sessionID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.sessionClients, sessionID)
		}
	}
	client.ClearSessionID()
}

// BroadcastToSession отправляет сообщение всем участникам сессии
func (h *Hub) BroadcastToSession(sessionID string, message []byte) {
	h.mu.RLock()
	room := h.sessionClients[sessionID]
	targets := make([]*Client, 0, len(room))
	for client := range room {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(message)
	}
}

// BroadcastJSONToSession сериализует значение и рассылает его участникам сессии
func (h *Hub) BroadcastJSONToSession(sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal session message: %w", err)
	}
	h.BroadcastToSession(sessionID, data)
	return nil
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		// Канал переполнен, рассылаем напрямую
		h.broadcastAll(message)
	}
}

// BroadcastJSON сериализует значение и отправляет всем клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast message: %w", err)
	}
	h.Broadcast(data)
	return nil
}

func (h *Hub) broadcastAll(message []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(message)
	}
}

// SendToUser отправляет сообщение всем соединениям пользователя.
// Возвращает true, если хотя бы одно соединение приняло сообщение.
func (h *Hub) SendToUser(userID string, message []byte) bool {
	h.mu.RLock()
	conns := h.userClients[userID]
	targets := make([]*Client, 0, len(conns))
	for client := range conns {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	sent := false
	for _, client := range targets {
		if client.enqueue(message) {
			sent = true
		}
	}
	return sent
}

// SendJSONToUser сериализует значение и отправляет пользователю
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal user message: %w", err)
	}
	if !h.SendToUser(userID, data) {
		return fmt.Errorf("user %s has no active connections", userID)
	}
	return nil
}

// ActiveParticipants возвращает ID участников, подключенных к сессии
func (h *Hub) ActiveParticipants(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.sessionClients[sessionID]
	seen := make(map[string]bool, len(room))
	ids := make([]string, 0, len(room))
	for client := range room {
		if !seen[client.UserID] {
			seen[client.UserID] = true
			ids = append(ids, client.UserID)
		}
	}
	return ids
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
