package repository

import "errors"

var (
	// ErrDuplicateAttempt означает, что попытка для пары (сессия, вопрос)
	// уже заархивирована - сработал уникальный индекс БД.
	ErrDuplicateAttempt = errors.New("attempt already archived for this session and question")
)
