package service

import (
	"fmt"
	"log"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/domain/repository"
	"github.com/Tutor-DA/quiz-api/internal/engine"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
)

// QuizService предоставляет методы для работы с определениями викторин
// и их банками вопросов
type QuizService struct {
	quizRepo     repository.QuizRepository
	questionRepo repository.QuestionRepository

	// Тайминги по умолчанию для новых викторин, если клиент их не задал
	defaultTimeLimitMs   int
	defaultRevealDelayMs int
}

// NewQuizService создает новый сервис викторин
func NewQuizService(
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
) *QuizService {
	return &QuizService{
		quizRepo:             quizRepo,
		questionRepo:         questionRepo,
		defaultTimeLimitMs:   entity.DefaultTimeLimitMs,
		defaultRevealDelayMs: entity.DefaultRevealDelayMs,
	}
}

// SetDefaultTimings задает тайминги по умолчанию для новых викторин.
// Вызывается при старте приложения значениями из конфигурации.
func (s *QuizService) SetDefaultTimings(timeLimitMs, revealDelayMs int) {
	if timeLimitMs > 0 {
		s.defaultTimeLimitMs = timeLimitMs
	}
	if revealDelayMs >= 0 {
		s.defaultRevealDelayMs = revealDelayMs
	}
}

// CreateQuiz создает новое определение викторины
func (s *QuizService) CreateQuiz(title, description string, timeLimitMs, revealDelayMs int) (*entity.Quiz, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if timeLimitMs <= 0 {
		timeLimitMs = s.defaultTimeLimitMs
	}
	if revealDelayMs < 0 {
		revealDelayMs = s.defaultRevealDelayMs
	}

	quiz := &entity.Quiz{
		Title:         title,
		Description:   description,
		TimeLimitMs:   timeLimitMs,
		RevealDelayMs: revealDelayMs,
		QuestionCount: 0,
	}

	if err := s.quizRepo.Create(quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	return quiz, nil
}

// GetQuizByID возвращает викторину по ID
func (s *QuizService) GetQuizByID(quizID uint) (*entity.Quiz, error) {
	return s.quizRepo.GetByID(quizID)
}

// GetQuizWithQuestions возвращает викторину с вопросами
func (s *QuizService) GetQuizWithQuestions(quizID uint) (*entity.Quiz, error) {
	return s.quizRepo.GetWithQuestions(quizID)
}

// ListQuizzes возвращает список викторин с пагинацией
func (s *QuizService) ListQuizzes(page, pageSize int) ([]entity.Quiz, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.quizRepo.List(pageSize, offset)
}

// UpdateQuiz обновляет название, описание и тайминги викторины
func (s *QuizService) UpdateQuiz(quizID uint, title, description string, timeLimitMs, revealDelayMs int) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(quizID)
	if err != nil {
		return nil, err
	}

	if title != "" {
		quiz.Title = title
	}
	quiz.Description = description
	if timeLimitMs > 0 {
		quiz.TimeLimitMs = timeLimitMs
	}
	if revealDelayMs >= 0 {
		quiz.RevealDelayMs = revealDelayMs
	}

	if err := s.quizRepo.Update(quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}
	return quiz, nil
}

// DeleteQuiz удаляет викторину вместе с вопросами
func (s *QuizService) DeleteQuiz(quizID uint) error {
	// Убеждаемся, что викторина существует
	if _, err := s.quizRepo.GetByID(quizID); err != nil {
		return err
	}
	return s.quizRepo.Delete(quizID)
}

// AddQuestions добавляет вопросы к викторине.
// Каждый вопрос проходит валидацию движка до записи в БД:
// 2-6 вариантов, уникальные ID вариантов, хотя бы один правильный.
func (s *QuizService) AddQuestions(quizID uint, questions []entity.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions provided", apperrors.ErrValidation)
	}

	// Убеждаемся, что викторина существует
	if _, err := s.quizRepo.GetByID(quizID); err != nil {
		return err
	}

	for i := range questions {
		questions[i].QuizID = quizID
		if questions[i].PromptFormat == "" {
			questions[i].PromptFormat = entity.PromptFormatPlain
		}
		if questions[i].PointValue <= 0 {
			questions[i].PointValue = 1
		}

		eq := ToEngineQuestion(&questions[i])
		if err := eq.Validate(); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}

	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	// Атомарное увеличение question_count (без перетирания других полей)
	if err := s.quizRepo.IncrementQuestionCount(quizID, len(questions)); err != nil {
		return err
	}

	log.Printf("[QuizService] Добавлено %d вопросов к викторине ID=%d", len(questions), quizID)
	return nil
}

// GetQuestionsByQuizID возвращает все вопросы викторины
func (s *QuizService) GetQuestionsByQuizID(quizID uint) ([]entity.Question, error) {
	return s.questionRepo.GetByQuizID(quizID)
}

// UpdateQuestion обновляет вопрос с повторной валидацией движком
func (s *QuizService) UpdateQuestion(question *entity.Question) error {
	eq := ToEngineQuestion(question)
	if err := eq.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return s.questionRepo.Update(question)
}

// DeleteQuestion удаляет вопрос и уменьшает счетчик вопросов викторины
func (s *QuizService) DeleteQuestion(questionID uint) error {
	question, err := s.questionRepo.GetByID(questionID)
	if err != nil {
		return err
	}
	if err := s.questionRepo.Delete(questionID); err != nil {
		return err
	}
	return s.quizRepo.IncrementQuestionCount(question.QuizID, -1)
}

// ToEngineQuestion конвертирует вопрос хранилища в неизменяемый вопрос движка
func ToEngineQuestion(q *entity.Question) engine.Question {
	options := make([]engine.Option, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, engine.Option{
			ID:        opt.ID,
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
		})
	}
	return engine.Question{
		ID:          q.ID,
		Prompt:      q.Prompt,
		Format:      engine.PromptFormat(q.PromptFormat),
		Options:     options,
		PointValue:  q.PointValue,
		Hint:        q.Hint,
		Explanation: q.Explanation,
	}
}

// ToEngineQuestions конвертирует банк вопросов викторины
func ToEngineQuestions(questions []entity.Question) []engine.Question {
	result := make([]engine.Question, 0, len(questions))
	for i := range questions {
		result = append(result, ToEngineQuestion(&questions[i]))
	}
	return result
}
