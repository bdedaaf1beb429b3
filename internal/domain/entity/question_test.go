package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestion() Question {
	return Question{
		ID:           1,
		QuizID:       10,
		Prompt:       "Чему равен корень из 16?",
		PromptFormat: PromptFormatPlain,
		Options: OptionArray{
			{ID: 1, Text: "2"},
			{ID: 2, Text: "4", IsCorrect: true},
			{ID: 3, Text: "8"},
		},
		PointValue: 1,
	}
}

func TestQuestion_IsCorrect(t *testing.T) {
	q := sampleQuestion()

	assert.True(t, q.IsCorrect(2))
	assert.False(t, q.IsCorrect(1))
	// Несуществующий вариант не может быть правильным
	assert.False(t, q.IsCorrect(99))
}

func TestQuestion_IsValidOption(t *testing.T) {
	q := sampleQuestion()

	assert.True(t, q.IsValidOption(1))
	assert.True(t, q.IsValidOption(3))
	assert.False(t, q.IsValidOption(0))
	assert.False(t, q.IsValidOption(99))
}

func TestQuestion_CorrectOptionIDs(t *testing.T) {
	q := sampleQuestion()
	assert.Equal(t, []int{2}, q.CorrectOptionIDs())

	// Мульти-вариант
	q.Options[0].IsCorrect = true
	assert.Equal(t, []int{1, 2}, q.CorrectOptionIDs())
}

func TestOptionArray_ScanValue(t *testing.T) {
	original := OptionArray{
		{ID: 1, Text: "да", IsCorrect: true},
		{ID: 2, Text: "нет"},
	}

	value, err := original.Value()
	require.NoError(t, err)

	var restored OptionArray
	require.NoError(t, restored.Scan(value))
	assert.Equal(t, original, restored)
}

func TestOptionArray_ScanNull(t *testing.T) {
	var opts OptionArray
	require.NoError(t, opts.Scan(nil))
	assert.Empty(t, opts)

	// Пустой массив сериализуется как "[]", а не null
	value, err := OptionArray{}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)
}
