package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	// Короткий интервал нужен для быстрого обнаружения отключений
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512

	// Размер буфера по умолчанию для каналов отправки сообщений клиенту
	defaultClientBufferSize = 128
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	// BufferSize определяет размер буфера канала отправки сообщений
	BufferSize int

	// PingInterval определяет интервал между ping-сообщениями
	PingInterval time.Duration

	// PongWait определяет время ожидания pong-ответа
	PongWait time.Duration

	// WriteWait определяет тайм-аут для записи сообщений
	WriteWait time.Duration

	// MaxMessageSize определяет максимальный размер сообщения
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// Client является посредником между WebSocket соединением и хабом.
type Client struct {
	// ID участника
	UserID string

	// Уникальный ID для каждого соединения
	ConnectionID string

	// Хаб, к которому подключен клиент
	hub *Hub

	// WebSocket соединение
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	// Время последней активности клиента
	lastActivity time.Time

	// Канал для ожидания завершения регистрации
	registrationComplete chan struct{}

	// ID сессии, к которой подключен клиент (пустая строка если не подключен)
	sessionID   string
	sessionIDMu sync.RWMutex

	// Параметры соединения (тайм-ауты, пинги, лимиты)
	config ClientConfig
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return NewClientWithConfig(hub, conn, userID, DefaultClientConfig())
}

// NewClientWithConfig создает нового клиента с указанной конфигурацией
func NewClientWithConfig(hub *Hub, conn *websocket.Conn, userID string, config ClientConfig) *Client {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultClientBufferSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = pingPeriod
	}
	if config.PongWait <= 0 {
		config.PongWait = pongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = writeWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = maxMessageSize
	}

	return &Client{
		hub:                  hub,
		conn:                 conn,
		send:                 make(chan []byte, config.BufferSize),
		UserID:               userID,
		ConnectionID:         uuid.New().String(),
		lastActivity:         time.Now(),
		registrationComplete: make(chan struct{}, 1),
		config:               config,
	}
}

// SetSessionID устанавливает ID текущей сессии для клиента
func (c *Client) SetSessionID(sessionID string) {
	c.sessionIDMu.Lock()
	c.sessionID = sessionID
	c.sessionIDMu.Unlock()
}

// GetSessionID возвращает ID текущей сессии клиента
func (c *Client) GetSessionID() string {
	c.sessionIDMu.RLock()
	defer c.sessionIDMu.RUnlock()
	return c.sessionID
}

// ClearSessionID сбрасывает ID текущей сессии (например, при выходе)
func (c *Client) ClearSessionID() {
	c.SetSessionID("")
}

// enqueue кладет сообщение в буфер отправки клиента.
// Возвращает false, если буфер переполнен или канал уже закрыт.
func (c *Client) enqueue(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		log.Printf("[Client %s][Conn %s] Буфер отправки переполнен, сообщение отброшено",
			c.UserID, c.ConnectionID)
		return false
	}
}

// closeSend закрывает канал отправки клиента ровно один раз
func (c *Client) closeSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		log.Printf("WebSocket Client Read Pump STOPPED for UserID: %s, ConnID: %s", c.UserID, c.ConnectionID)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		c.lastActivity = time.Now()
		return nil
	})

	log.Printf("WebSocket Client Read Pump STARTED for UserID: %s, ConnID: %s", c.UserID, c.ConnectionID)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket Client Connection Closed Normally (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			} else {
				log.Printf("WebSocket Client Read Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}
			break
		}

		c.lastActivity = time.Now()

		// Безопасный вызов обработчика с recover
		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("WebSocket Client Handler Error (UserID: %s, ConnID: %s): %v. Closing connection.", c.UserID, c.ConnectionID, handlerErr)
			break
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover.
// Возвращает ошибку, если обработчик вернул ошибку.
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for UserID: %s, ConnID: %s. Panic: %v\nStack trace:\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	} else {
		log.Printf("Warning: No message handler registered for client %s", client.UserID)
	}
	return err
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.Printf("WebSocket Client Write Pump STOPPED for UserID: %s, ConnID: %s", c.UserID, c.ConnectionID)
	}()

	log.Printf("WebSocket Client Write Pump STARTED for UserID: %s, ConnID: %s", c.UserID, c.ConnectionID)

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

			if !ok {
				// Канал send закрыт хабом
				log.Printf("WebSocket Client Send Channel Closed (UserID: %s, ConnID: %s)", c.UserID, c.ConnectionID)
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("WebSocket Client NextWriter Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

			if _, err := w.Write(message); err != nil {
				log.Printf("WebSocket Client Write Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}

			if err := w.Close(); err != nil {
				log.Printf("WebSocket Client Writer Close Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline (Ping) Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket Client Ping Error (UserID: %s, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}
		}
	}
}

// StartPumps регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	if c.UserID == "" {
		log.Printf("WebSocket: client has no UserID, skipping registration")
		c.conn.Close()
		return
	}

	c.hub.register <- c

	// Ожидаем завершения регистрации
	select {
	case <-c.registrationComplete:
		log.Printf("WebSocket: client %s fully registered, starting pumps", c.UserID)
	case <-time.After(5 * time.Second):
		log.Printf("WebSocket: timeout waiting for client %s registration", c.UserID)
		c.conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(messageHandler)
}
