package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/Tutor-DA/quiz-api/internal/domain/entity"
	"github.com/Tutor-DA/quiz-api/internal/handler/dto"
	apperrors "github.com/Tutor-DA/quiz-api/internal/pkg/errors"
	"github.com/Tutor-DA/quiz-api/internal/service"
)

// QuizHandler обрабатывает авторское API викторин: CRUD определений,
// банк вопросов, импорт из xlsx и экспорт результатов
type QuizHandler struct {
	quizService   *service.QuizService
	resultService *service.ResultService
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(
	quizService *service.QuizService,
	resultService *service.ResultService,
) *QuizHandler {
	return &QuizHandler{
		quizService:   quizService,
		resultService: resultService,
	}
}

// CreateQuizRequest представляет запрос на создание викторины
type CreateQuizRequest struct {
	Title         string `json:"title" binding:"required,min=3,max=100"`
	Description   string `json:"description" binding:"omitempty,max=500"`
	TimeLimitMs   int    `json:"time_limit_ms" binding:"omitempty,min=1000,max=600000"`
	RevealDelayMs int    `json:"reveal_delay_ms" binding:"omitempty,min=0,max=60000"`
}

// CreateQuiz обрабатывает запрос на создание викторины
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.CreateQuiz(req.Title, req.Description, req.TimeLimitMs, req.RevealDelayMs)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, false, false))
}

// GetQuiz возвращает информацию о викторине
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint) // Получаем из контекста

	quiz, err := h.quizService.GetQuizByID(quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, false, false))
}

// GetQuizWithQuestions возвращает викторину с банком вопросов.
// Флаги правильности включены - это авторский endpoint.
func (h *QuizHandler) GetQuizWithQuestions(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	quiz, err := h.quizService.GetQuizWithQuestions(quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true, true))
}

// ListQuizzes возвращает список викторин с пагинацией
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	quizzes, err := h.quizService.ListQuizzes(page, pageSize)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListQuizResponse(quizzes))
}

// UpdateQuizRequest представляет запрос на обновление викторины
type UpdateQuizRequest struct {
	Title         string `json:"title" binding:"omitempty,min=3,max=100"`
	Description   string `json:"description" binding:"omitempty,max=500"`
	TimeLimitMs   int    `json:"time_limit_ms" binding:"omitempty,min=1000,max=600000"`
	RevealDelayMs int    `json:"reveal_delay_ms" binding:"omitempty,min=0,max=60000"`
}

// UpdateQuiz обновляет название, описание и тайминги викторины
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quiz, err := h.quizService.UpdateQuiz(quizID, req.Title, req.Description, req.TimeLimitMs, req.RevealDelayMs)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, false, false))
}

// DeleteQuiz удаляет викторину вместе с вопросами
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	if err := h.quizService.DeleteQuiz(quizID); err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Quiz deleted"})
}

// AddQuestionsRequest представляет запрос на добавление вопросов
type AddQuestionsRequest struct {
	Questions []struct {
		Prompt       string `json:"prompt" binding:"required,min=3,max=500"`
		PromptFormat string `json:"prompt_format" binding:"omitempty,oneof=plain math"`
		Options      []struct {
			ID        int    `json:"id" binding:"required"`
			Text      string `json:"text" binding:"required,max=200"`
			IsCorrect bool   `json:"is_correct"`
		} `json:"options" binding:"required,min=2,max=6"`
		PointValue  int    `json:"point_value" binding:"omitempty,min=1,max=100"`
		Hint        string `json:"hint" binding:"omitempty,max=500"`
		Explanation string `json:"explanation" binding:"omitempty,max=1000"`
	} `json:"questions" binding:"required,min=1"`
}

// AddQuestions добавляет вопросы к викторине
func (h *QuizHandler) AddQuestions(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions := make([]entity.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		options := make(entity.OptionArray, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, entity.Option{ID: opt.ID, Text: opt.Text, IsCorrect: opt.IsCorrect})
		}
		questions = append(questions, entity.Question{
			Prompt:       q.Prompt,
			PromptFormat: q.PromptFormat,
			Options:      options,
			PointValue:   q.PointValue,
			Hint:         q.Hint,
			Explanation:  q.Explanation,
		})
	}

	if err := h.quizService.AddQuestions(quizID, questions); err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("Added %d questions", len(questions))})
}

// DeleteQuestion удаляет вопрос из банка викторины
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	if err := h.quizService.DeleteQuestion(questionID); err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}

// ImportQuestions импортирует вопросы викторины из xlsx-файла.
// Формат строки: текст вопроса | формат | стоимость | подсказка | пояснение |
// варианты (до 6 колонок). Правильные варианты помечаются префиксом "*".
func (h *QuizHandler) ImportQuestions(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid xlsx file"})
		return
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read sheet"})
		return
	}

	questions := make([]entity.Question, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // Строка заголовков
		}
		question, err := parseQuestionRow(row)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": fmt.Sprintf("row %d: %v", i+1, err),
			})
			return
		}
		questions = append(questions, question)
	}

	if len(questions) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "File contains no questions"})
		return
	}

	if err := h.quizService.AddQuestions(quizID, questions); err != nil {
		h.handleQuizError(c, err)
		return
	}

	log.Printf("[QuizHandler] Импортировано %d вопросов в викторину ID=%d из файла %s",
		len(questions), quizID, fileHeader.Filename)
	c.JSON(http.StatusCreated, gin.H{"imported": len(questions)})
}

// parseQuestionRow разбирает одну строку xlsx-файла импорта
func parseQuestionRow(row []string) (entity.Question, error) {
	if len(row) < 7 {
		return entity.Question{}, errors.New("expected at least 7 columns")
	}

	prompt := strings.TrimSpace(row[0])
	if prompt == "" {
		return entity.Question{}, errors.New("empty prompt")
	}

	format := strings.TrimSpace(strings.ToLower(row[1]))
	if format == "" {
		format = entity.PromptFormatPlain
	}
	if format != entity.PromptFormatPlain && format != entity.PromptFormatMath {
		return entity.Question{}, fmt.Errorf("unknown prompt format %q", format)
	}

	pointValue := 1
	if v := strings.TrimSpace(row[2]); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return entity.Question{}, fmt.Errorf("invalid point value %q", row[2])
		}
		pointValue = parsed
	}

	options := make(entity.OptionArray, 0, 6)
	for _, cell := range row[5:] {
		text := strings.TrimSpace(cell)
		if text == "" {
			continue
		}
		correct := strings.HasPrefix(text, "*")
		if correct {
			text = strings.TrimSpace(strings.TrimPrefix(text, "*"))
		}
		options = append(options, entity.Option{
			ID:        len(options) + 1,
			Text:      text,
			IsCorrect: correct,
		})
	}

	return entity.Question{
		Prompt:       prompt,
		PromptFormat: format,
		PointValue:   pointValue,
		Hint:         strings.TrimSpace(row[3]),
		Explanation:  strings.TrimSpace(row[4]),
		Options:      options,
	}, nil
}

// GetQuizResults возвращает страницу итогового лидерборда викторины
func (h *QuizHandler) GetQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, total, err := h.resultService.GetQuizResults(quizID, page, pageSize)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	respResults := make([]*dto.ResultResponse, 0, len(results))
	for i := range results {
		respResults = append(respResults, dto.NewResultResponse(&results[i]))
	}

	c.JSON(http.StatusOK, dto.PaginatedResultResponse{
		Results: respResults,
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	})
}

// GetQuizStatistics возвращает агрегированную статистику викторины
func (h *QuizHandler) GetQuizStatistics(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	stats, err := h.resultService.CalculateQuizStatistics(quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportQuizResults экспортирует итоги викторины в CSV или XLSX
func (h *QuizHandler) ExportQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	format := c.DefaultQuery("format", "csv")

	results, err := h.resultService.GetAllQuizResults(quizID)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	filename := fmt.Sprintf("quiz_%d_results", quizID)

	switch format {
	case "xlsx":
		h.exportXLSX(c, results, filename)
	default:
		h.exportCSV(c, results, filename)
	}
}

// exportCSV экспортирует результаты в CSV с правильным экранированием спецсимволов
func (h *QuizHandler) exportCSV(c *gin.Context, results []entity.SessionResult, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Место", "Участник", "Очки", "Правильных", "Всего вопросов", "Завершено"})

	for _, r := range results {
		writer.Write([]string{
			strconv.Itoa(r.Rank),
			sanitizeForExcel(r.DisplayName),
			strconv.Itoa(r.Score),
			strconv.Itoa(r.CorrectCount),
			strconv.Itoa(r.TotalCount),
			r.CompletedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// exportXLSX экспортирует результаты в Excel с использованием StreamWriter
func (h *QuizHandler) exportXLSX(c *gin.Context, results []entity.SessionResult, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[QuizHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Участник", "Очки", "Правильных", "Всего вопросов", "Завершено"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[QuizHandler] Ошибка записи заголовков: %v", err)
	}

	for i, r := range results {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{
			r.Rank,
			sanitizeForExcel(r.DisplayName),
			r.Score,
			r.CorrectCount,
			r.TotalCount,
			r.CompletedAt.Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[QuizHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[QuizHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[QuizHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// handleQuizError преобразует ошибки сервисов в HTTP-статусы
func (h *QuizHandler) handleQuizError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in QuizHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
