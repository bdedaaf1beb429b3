package dto

import (
	"time"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/engine"
)

// OptionResponse представляет вариант ответа для клиента.
// Флаг правильности отдается только авторскому API: участнику правильные
// варианты раскрываются исключительно событием quiz:answer_reveal.
type OptionResponse struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

// QuestionResponse представляет вопрос в формате для ответа клиенту
type QuestionResponse struct {
	ID           uint             `json:"id"`
	QuizID       uint             `json:"quiz_id"`
	Prompt       string           `json:"prompt"`
	PromptFormat string           `json:"prompt_format"`
	Options      []OptionResponse `json:"options"`
	PointValue   int              `json:"point_value"`
	Hint         string           `json:"hint,omitempty"`
	Explanation  string           `json:"explanation,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID            uint               `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	TimeLimitMs   int                `json:"time_limit_ms"`
	RevealDelayMs int                `json:"reveal_delay_ms"`
	QuestionCount int                `json:"question_count"`
	Questions     []QuestionResponse `json:"questions,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ResultResponse представляет итог сессии в формате для ответа клиенту
type ResultResponse struct {
	SessionID     string    `json:"session_id"`
	QuizID        uint      `json:"quiz_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Score         int       `json:"score"`
	CorrectCount  int       `json:"correct_count"`
	TotalCount    int       `json:"total_count"`
	Rank          int       `json:"rank"`
	CompletedAt   time.Time `json:"completed_at"`
}

// PaginatedResultResponse представляет пагинированный список итогов
type PaginatedResultResponse struct {
	Results []*ResultResponse `json:"results"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// AttemptResponse представляет заархивированную попытку для клиента
type AttemptResponse struct {
	QuestionID     uint   `json:"question_id"`
	SelectedOption *int   `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Outcome        string `json:"outcome"`
}

// SnapshotResponse представляет срез состояния активной сессии
type SnapshotResponse struct {
	SessionID    string            `json:"session_id"`
	State        string            `json:"state"`
	CurrentIndex int               `json:"current_index"`
	Total        int               `json:"total"`
	Score        int               `json:"score"`
	Attempts     []AttemptResponse `json:"attempts"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// LeaderboardEntryResponse представляет строку живого лидерборда
type LeaderboardEntryResponse struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// NewQuestionResponse создает DTO для вопроса.
// includeCorrect управляет раскрытием флагов правильности (авторское API).
func NewQuestionResponse(q *entity.Question, includeCorrect bool) QuestionResponse {
	options := make([]OptionResponse, 0, len(q.Options))
	for _, opt := range q.Options {
		o := OptionResponse{ID: opt.ID, Text: opt.Text}
		if includeCorrect {
			correct := opt.IsCorrect
			o.IsCorrect = &correct
		}
		options = append(options, o)
	}

	return QuestionResponse{
		ID:           q.ID,
		QuizID:       q.QuizID,
		Prompt:       q.Prompt,
		PromptFormat: q.PromptFormat,
		Options:      options,
		PointValue:   q.PointValue,
		Hint:         q.Hint,
		Explanation:  q.Explanation,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

// NewQuizResponse создает DTO для викторины
func NewQuizResponse(quiz *entity.Quiz, includeQuestions, includeCorrect bool) *QuizResponse {
	resp := &QuizResponse{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		TimeLimitMs:   quiz.TimeLimitMs,
		RevealDelayMs: quiz.RevealDelayMs,
		QuestionCount: quiz.QuestionCount,
		CreatedAt:     quiz.CreatedAt,
		UpdatedAt:     quiz.UpdatedAt,
	}

	if includeQuestions && len(quiz.Questions) > 0 {
		resp.Questions = make([]QuestionResponse, 0, len(quiz.Questions))
		for i := range quiz.Questions {
			resp.Questions = append(resp.Questions, NewQuestionResponse(&quiz.Questions[i], includeCorrect))
		}
	}

	return resp
}

// NewListQuizResponse создает список DTO викторин без вопросов
func NewListQuizResponse(quizzes []entity.Quiz) []*QuizResponse {
	list := make([]*QuizResponse, 0, len(quizzes))
	for i := range quizzes {
		list = append(list, NewQuizResponse(&quizzes[i], false, false))
	}
	return list
}

// NewResultResponse создает DTO для итога сессии
func NewResultResponse(r *entity.SessionResult) *ResultResponse {
	return &ResultResponse{
		SessionID:     r.SessionID,
		QuizID:        r.QuizID,
		ParticipantID: r.ParticipantID,
		DisplayName:   r.DisplayName,
		Score:         r.Score,
		CorrectCount:  r.CorrectCount,
		TotalCount:    r.TotalCount,
		Rank:          r.Rank,
		CompletedAt:   r.CompletedAt,
	}
}

// NewAttemptResponse создает DTO для заархивированной попытки
func NewAttemptResponse(a *entity.AttemptRecord) AttemptResponse {
	return AttemptResponse{
		QuestionID:     a.QuestionID,
		SelectedOption: a.SelectedOption,
		IsCorrect:      a.IsCorrect,
		ResponseTimeMs: a.ResponseTimeMs,
		Outcome:        a.Outcome,
	}
}

// NewSnapshotResponse создает DTO среза состояния сессии движка
func NewSnapshotResponse(s engine.Snapshot) *SnapshotResponse {
	attempts := make([]AttemptResponse, 0, len(s.Attempts))
	for _, a := range s.Attempts {
		attempts = append(attempts, AttemptResponse{
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOptionID,
			IsCorrect:      a.IsCorrect,
			ResponseTimeMs: a.ResponseTimeMs,
			Outcome:        string(a.Outcome),
		})
	}

	resp := &SnapshotResponse{
		SessionID:    s.ID,
		State:        string(s.State),
		CurrentIndex: s.CurrentIndex,
		Total:        s.Total,
		Score:        s.Score,
		Attempts:     attempts,
		StartedAt:    s.StartedAt,
	}
	if !s.CompletedAt.IsZero() {
		completed := s.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// NewLeaderboardResponse создает список DTO строк лидерборда
func NewLeaderboardResponse(entries []engine.LeaderboardEntry) []LeaderboardEntryResponse {
	list := make([]LeaderboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		list = append(list, LeaderboardEntryResponse{
			ParticipantID: e.ParticipantID,
			DisplayName:   e.DisplayName,
			Score:         e.Score,
			Rank:          e.Rank,
		})
	}
	return list
}
