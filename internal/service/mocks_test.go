package service

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
)

// Создаем мок-объекты для интерфейсов репозиториев

type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(quiz *entity.Quiz) error {
	args := m.Called(quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(id uint) (*entity.Quiz, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetWithQuestions(id uint) (*entity.Quiz, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) Update(quiz *entity.Quiz) error {
	args := m.Called(quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) IncrementQuestionCount(quizID uint, delta int) error {
	args := m.Called(quizID, delta)
	return args.Error(0)
}

func (m *MockQuizRepository) List(limit, offset int) ([]entity.Quiz, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(question *entity.Question) error {
	args := m.Called(question)
	return args.Error(0)
}

func (m *MockQuestionRepository) CreateBatch(questions []entity.Question) error {
	args := m.Called(questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByQuizID(quizID uint) ([]entity.Question, error) {
	args := m.Called(quizID)
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) Update(question *entity.Question) error {
	args := m.Called(question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) SaveAttempt(attempt *entity.AttemptRecord) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockResultRepository) GetSessionAttempts(sessionID string) ([]entity.AttemptRecord, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]entity.AttemptRecord), args.Error(1)
}

func (m *MockResultRepository) SaveResult(result *entity.SessionResult) error {
	args := m.Called(result)
	return args.Error(0)
}

func (m *MockResultRepository) GetSessionResult(sessionID string) (*entity.SessionResult, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SessionResult), args.Error(1)
}

func (m *MockResultRepository) GetQuizResults(quizID uint, limit, offset int) ([]entity.SessionResult, int64, error) {
	args := m.Called(quizID, limit, offset)
	return args.Get(0).([]entity.SessionResult), args.Get(1).(int64), args.Error(2)
}

func (m *MockResultRepository) GetAllQuizResults(quizID uint) ([]entity.SessionResult, error) {
	args := m.Called(quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SessionResult), args.Error(1)
}

func (m *MockResultRepository) CalculateRanks(quizID uint) error {
	args := m.Called(quizID)
	return args.Error(0)
}

type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

// recordingPublisher собирает опубликованные события.
// Потокобезопасен: события приходят из горутин таймеров движка.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	RoomID    string
	EventType string
	Data      interface{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{}
}

func (p *recordingPublisher) BroadcastEventToSession(sessionID string, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoomID: sessionID, EventType: eventType, Data: data})
	return nil
}

// countByType возвращает количество событий указанного типа
func (p *recordingPublisher) countByType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}

// lastOfType возвращает последнее событие указанного типа
func (p *recordingPublisher) lastOfType(eventType string) (publishedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].EventType == eventType {
			return p.events[i], true
		}
	}
	return publishedEvent{}, false
}
