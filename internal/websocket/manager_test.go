package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ====================================================================
// Моки
// ====================================================================

type MockHub struct {
	mock.Mock
}

func (m *MockHub) BroadcastJSON(v interface{}) error {
	args := m.Called(v)
	return args.Error(0)
}

func (m *MockHub) SendJSONToUser(userID string, v interface{}) error {
	args := m.Called(userID, v)
	return args.Error(0)
}

func (m *MockHub) SendToUser(userID string, message []byte) bool {
	args := m.Called(userID, message)
	return args.Bool(0)
}

func (m *MockHub) BroadcastToSession(sessionID string, message []byte) {
	m.Called(sessionID, message)
}

func (m *MockHub) SubscribeToSession(client *Client, sessionID string) {
	m.Called(client, sessionID)
}

func (m *MockHub) UnsubscribeFromSession(client *Client) {
	m.Called(client)
}

func (m *MockHub) ActiveParticipants(sessionID string) []string {
	args := m.Called(sessionID)
	return args.Get(0).([]string)
}

func (m *MockHub) ClientCount() int {
	args := m.Called()
	return args.Int(0)
}

func testClient(userID string) *Client {
	return &Client{
		UserID:       userID,
		ConnectionID: "test-conn",
		send:         make(chan []byte, 8),
	}
}

// ====================================================================
// Тесты Manager
// ====================================================================

func TestManager_HandleMessage_RoutesToHandler(t *testing.T) {
	hub := new(MockHub)
	manager := NewManager(hub)
	client := testClient("user-1")

	var gotOption int
	manager.RegisterHandler(USER_ANSWER, func(data json.RawMessage, c *Client) error {
		var payload struct {
			OptionID int `json:"option_id"`
		}
		require.NoError(t, json.Unmarshal(data, &payload))
		gotOption = payload.OptionID
		return nil
	})

	message := []byte(`{"type":"user:answer","data":{"option_id":2}}`)
	err := manager.HandleMessage(message, client)

	require.NoError(t, err)
	assert.Equal(t, 2, gotOption)
	hub.AssertNotCalled(t, "SendJSONToUser", mock.Anything, mock.Anything)
}

func TestManager_HandleMessage_InvalidJSON(t *testing.T) {
	hub := new(MockHub)
	hub.On("SendJSONToUser", "user-1", mock.Anything).Return(nil)

	manager := NewManager(hub)
	client := testClient("user-1")

	err := manager.HandleMessage([]byte("not json"), client)

	// Невалидный JSON - фатальная ошибка, соединение должно закрыться
	require.Error(t, err)
	hub.AssertCalled(t, "SendJSONToUser", "user-1", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(Event)
		return ok && event.Type == SERVER_ERROR
	}))
}

func TestManager_HandleMessage_UnknownType(t *testing.T) {
	hub := new(MockHub)
	hub.On("SendJSONToUser", "user-1", mock.Anything).Return(nil)

	manager := NewManager(hub)
	client := testClient("user-1")

	err := manager.HandleMessage([]byte(`{"type":"nope","data":{}}`), client)

	// Неизвестный тип не закрывает соединение
	assert.NoError(t, err)
	hub.AssertCalled(t, "SendJSONToUser", "user-1", mock.Anything)
}

func TestManager_HandleMessage_HandlerError(t *testing.T) {
	hub := new(MockHub)
	manager := NewManager(hub)
	client := testClient("user-1")

	handlerErr := errors.New("boom")
	manager.RegisterHandler(USER_READY, func(data json.RawMessage, c *Client) error {
		return handlerErr
	})

	err := manager.HandleMessage([]byte(`{"type":"user:ready","data":{}}`), client)
	assert.ErrorIs(t, err, handlerErr)
}

func TestManager_BroadcastEventToSession(t *testing.T) {
	hub := new(MockHub)
	hub.On("BroadcastToSession", "sess-1", mock.Anything).Return()

	manager := NewManager(hub)
	err := manager.BroadcastEventToSession("sess-1", QUIZ_TIMER, map[string]int64{"remaining_ms": 5000})

	require.NoError(t, err)
	hub.AssertCalled(t, "BroadcastToSession", "sess-1", mock.MatchedBy(func(raw []byte) bool {
		var event Event
		return json.Unmarshal(raw, &event) == nil && event.Type == QUIZ_TIMER
	}))
}

// ====================================================================
// Тесты Hub (комнаты сессий)
// ====================================================================

func TestHub_SessionRooms(t *testing.T) {
	hub := NewHub()

	alice := testClient("alice")
	bob := testClient("bob")

	hub.SubscribeToSession(alice, "sess-1")
	hub.SubscribeToSession(bob, "sess-1")

	participants := hub.ActiveParticipants("sess-1")
	assert.ElementsMatch(t, []string{"alice", "bob"}, participants)

	// Рассылка в комнату доходит до обоих клиентов
	hub.BroadcastToSession("sess-1", []byte(`{"type":"quiz:timer"}`))
	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 1)

	// Переподписка на другую сессию убирает клиента из старой комнаты
	hub.SubscribeToSession(bob, "sess-2")
	assert.ElementsMatch(t, []string{"alice"}, hub.ActiveParticipants("sess-1"))
	assert.Equal(t, "sess-2", bob.GetSessionID())

	// Отписка очищает привязку
	hub.UnsubscribeFromSession(alice)
	assert.Empty(t, hub.ActiveParticipants("sess-1"))
	assert.Equal(t, "", alice.GetSessionID())
}

func TestHub_EnqueueDropsWhenBufferFull(t *testing.T) {
	client := &Client{
		UserID:       "slow",
		ConnectionID: "conn",
		send:         make(chan []byte, 1),
	}

	assert.True(t, client.enqueue([]byte("one")))
	assert.False(t, client.enqueue([]byte("two")))

	client.closeSend()
	assert.False(t, client.enqueue([]byte("three")))
}
