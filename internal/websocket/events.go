package websocket

// Типы событий, отправляемых сервером клиентам
const (
	// QUIZ_QUESTION сообщает о начале нового вопроса
	QUIZ_QUESTION = "quiz:question"

	// QUIZ_TIMER сообщает оставшееся время текущего вопроса
	QUIZ_TIMER = "quiz:timer"

	// QUIZ_ANSWER_REVEAL сообщает о раскрытии правильного ответа
	QUIZ_ANSWER_REVEAL = "quiz:answer_reveal"

	// QUIZ_FINISH сообщает о завершении сессии
	QUIZ_FINISH = "quiz:finish"

	// QUIZ_CANCELLED сообщает об отмене сессии
	QUIZ_CANCELLED = "quiz:cancelled"

	// LEADERBOARD_UPDATE сообщает об обновлении таблицы лидеров
	LEADERBOARD_UPDATE = "leaderboard:update"

	// SERVER_ERROR сообщает об ошибке обработки сообщения клиента
	SERVER_ERROR = "server:error"
)

// Типы сообщений, отправляемых клиентами серверу
const (
	// USER_ANSWER содержит ответ участника на текущий вопрос
	USER_ANSWER = "user:answer"

	// USER_READY сообщает о готовности участника к началу сессии
	USER_READY = "user:ready"

	// USER_HEARTBEAT подтверждает, что участник все еще на связи
	USER_HEARTBEAT = "user:heartbeat"
)
