package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion() Question {
	return Question{
		ID:     1,
		Prompt: "2 + 2 = ?",
		Format: PromptFormatPlain,
		Options: []Option{
			{ID: 1, Text: "3"},
			{ID: 2, Text: "4", IsCorrect: true},
			{ID: 3, Text: "5"},
		},
		PointValue: 1,
	}
}

func TestQuestion_Validate(t *testing.T) {
	q := validQuestion()
	assert.NoError(t, q.Validate())

	// Меньше двух вариантов
	q = validQuestion()
	q.Options = q.Options[:1]
	assert.Error(t, q.Validate())

	// Ни одного правильного
	q = validQuestion()
	for i := range q.Options {
		q.Options[i].IsCorrect = false
	}
	assert.Error(t, q.Validate())

	// Дубликат ID варианта
	q = validQuestion()
	q.Options[2].ID = 1
	assert.Error(t, q.Validate())

	// Неположительная стоимость
	q = validQuestion()
	q.PointValue = 0
	assert.Error(t, q.Validate())

	// Неизвестный формат текста
	q = validQuestion()
	q.Format = "latex"
	assert.Error(t, q.Validate())
}

func TestQuestion_MultiCorrectAllowed(t *testing.T) {
	q := validQuestion()
	q.Options[0].IsCorrect = true

	require.NoError(t, q.Validate())
	assert.Equal(t, []int{1, 2}, q.CorrectOptionIDs())
	assert.True(t, q.IsCorrect(1))
	assert.True(t, q.IsCorrect(2))
	assert.False(t, q.IsCorrect(3))
}

func TestQuestion_MathFormat(t *testing.T) {
	q := validQuestion()
	q.Format = PromptFormatMath
	q.Prompt = `\frac{1}{2} + \frac{1}{2} = ?`
	assert.NoError(t, q.Validate())
}

// Перемешивание меняет только порядок показа: состав вариантов и
// правильность по ID неизменны.
func TestQuestion_ShuffledOptionsKeepCorrectness(t *testing.T) {
	q := validQuestion()
	rng := rand.New(rand.NewSource(42))

	shuffled := q.ShuffledOptions(rng)
	require.Len(t, shuffled, len(q.Options))

	byID := make(map[int]Option)
	for _, opt := range shuffled {
		byID[opt.ID] = opt
	}
	for _, opt := range q.Options {
		got, ok := byID[opt.ID]
		require.True(t, ok)
		assert.Equal(t, opt.IsCorrect, got.IsCorrect)
		assert.Equal(t, opt.Text, got.Text)
	}
}

func TestValidateBank(t *testing.T) {
	assert.ErrorIs(t, ValidateBank(nil), ErrEmptyQuestionBank)

	// Дубликат ID вопроса в банке
	q1 := validQuestion()
	q2 := validQuestion()
	assert.Error(t, ValidateBank([]Question{q1, q2}))

	q2.ID = 2
	assert.NoError(t, ValidateBank([]Question{q1, q2}))
}
