package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_IsCorrect_ExactMatch(t *testing.T) {
	question := &Question{
		Text:          "Какой язык используется в Go?",
		Options:       StringArray{"Python", "Go", "Java", "Rust"},
		CorrectAnswer: "Go",
		TimeLimitSec:  30,
	}

	assert.True(t, question.IsCorrect("Go"), "IsCorrect должен вернуть true для точного совпадения")
}

func TestQuestion_IsCorrect_CaseAndWhitespaceInsensitive(t *testing.T) {
	question := &Question{CorrectAnswer: "Paris"}

	assert.True(t, question.IsCorrect("paris"))
	assert.True(t, question.IsCorrect("  Paris  "))
	assert.True(t, question.IsCorrect("PARIS"))
}

func TestQuestion_IsCorrect_StripsPunctuation(t *testing.T) {
	question := &Question{CorrectAnswer: "Paris"}

	assert.True(t, question.IsCorrect("Paris!"))
	assert.True(t, question.IsCorrect("  ¡Paris?  "))
}

func TestQuestion_IsCorrect_WrongAnswer(t *testing.T) {
	question := &Question{CorrectAnswer: "Go"}

	assert.False(t, question.IsCorrect("Rust"))
	assert.False(t, question.IsCorrect(""))
}

func TestQuestion_IsValidOption_ClosedSet(t *testing.T) {
	question := &Question{
		Options: StringArray{"A", "B", "C", "D"},
	}

	assert.True(t, question.IsValidOption("A"))
	assert.True(t, question.IsValidOption("b"))
	assert.False(t, question.IsValidOption("E"))
	assert.False(t, question.IsValidOption(""))
}

func TestQuestion_IsValidOption_OpenEnded(t *testing.T) {
	question := &Question{Options: nil}

	assert.True(t, question.IsValidOption("anything at all"))
}

func TestQuestion_OptionsCount(t *testing.T) {
	testCases := []struct {
		name     string
		options  StringArray
		expected int
	}{
		{"4 варианта", StringArray{"A", "B", "C", "D"}, 4},
		{"2 варианта", StringArray{"Да", "Нет"}, 2},
		{"0 вариантов", StringArray{}, 0},
		{"nil варианты", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			question := &Question{Options: tc.options}
			assert.Equal(t, tc.expected, question.OptionsCount())
		})
	}
}

func TestQuestion_TableName(t *testing.T) {
	question := Question{}
	assert.Equal(t, "questions", question.TableName(), "TableName должен возвращать 'questions'")
}

// Тесты для StringArray (JSONB сериализация)

func TestStringArray_Scan_ValidJSON(t *testing.T) {
	jsonBytes := []byte(`["Option 1", "Option 2", "Option 3"]`)
	var arr StringArray

	err := arr.Scan(jsonBytes)

	require.NoError(t, err, "Scan не должен возвращать ошибку для валидного JSON")
	assert.Len(t, arr, 3, "Должно быть 3 элемента")
	assert.Equal(t, "Option 1", arr[0])
	assert.Equal(t, "Option 2", arr[1])
	assert.Equal(t, "Option 3", arr[2])
}

func TestStringArray_Scan_NullValue(t *testing.T) {
	var arr StringArray

	err := arr.Scan(nil)

	require.NoError(t, err, "Scan не должен возвращать ошибку для nil")
	assert.Len(t, arr, 0, "Для nil должен вернуться пустой массив")
}

func TestStringArray_Scan_EmptyBytes(t *testing.T) {
	var arr StringArray

	err := arr.Scan([]byte{})

	require.NoError(t, err, "Scan не должен возвращать ошибку для пустого массива байт")
	assert.Len(t, arr, 0, "Для пустых байт должен вернуться пустой массив")
}

func TestStringArray_Scan_InvalidType(t *testing.T) {
	var arr StringArray

	err := arr.Scan("not a byte slice")

	assert.Error(t, err, "Scan должен возвращать ошибку для неподдерживаемого типа")
}

func TestStringArray_Value_NonEmpty(t *testing.T) {
	arr := StringArray{"A", "B", "C"}

	val, err := arr.Value()

	require.NoError(t, err, "Value не должен возвращать ошибку")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, `["A","B","C"]`, string(bytes), "JSON должен быть корректным")
}

func TestStringArray_Value_Empty(t *testing.T) {
	arr := StringArray{}

	val, err := arr.Value()

	require.NoError(t, err, "Value не должен возвращать ошибку для пустого массива")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, "[]", string(bytes), "Пустой массив должен сериализоваться в []")
}

func TestStringArray_Value_Nil(t *testing.T) {
	var arr StringArray = nil

	val, err := arr.Value()

	require.NoError(t, err, "Value не должен возвращать ошибку для nil")

	bytes, ok := val.([]byte)
	require.True(t, ok, "Value должен возвращать []byte")
	assert.Equal(t, "[]", string(bytes), "nil должен сериализоваться в []")
}
