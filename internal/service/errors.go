package service

import "errors"

// Определяем кастомные ошибки для сервисов
var (
	// ErrSessionNotFound - сессия не найдена среди активных
	ErrSessionNotFound = errors.New("session not found")

	// ErrQuizHasNoQuestions - у викторины нет вопросов, сессию не запустить
	ErrQuizHasNoQuestions = errors.New("quiz has no questions")

	// ErrNotSessionOwner - участник пытается управлять чужой сессией
	ErrNotSessionOwner = errors.New("participant does not own this session")
)
