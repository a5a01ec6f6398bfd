package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eblago/backend/pkg/apperr"
)

type sample struct {
	Title    string    `json:"title" validate:"required,min=3,max=100"`
	Email    string    `json:"email" validate:"required,email"`
	Category string    `json:"category" validate:"oneof=medical military"`
	Max      int       `json:"max_participants" validate:"min=1"`
	Start    time.Time `json:"start_date"`
	End      time.Time `json:"end_date" validate:"gtfield=Start"`
}

func TestStructReportsJSONNames(t *testing.T) {
	now := time.Now()
	err := Struct(sample{Title: "ab", Email: "nope", Category: "sports", Start: now, End: now.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	msg := apperr.PublicMessage(err)
	assert.Contains(t, msg, "title must be at least 3 characters")
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "category must be one of: medical, military")
	assert.Contains(t, msg, "max_participants must be at least 1")
	assert.Contains(t, msg, "end_date must be after start")
}

func TestStructValid(t *testing.T) {
	now := time.Now()
	assert.NoError(t, Struct(sample{Title: "Blood drive", Email: "a@b.io", Category: "medical", Max: 3, Start: now, End: now.Add(time.Hour)}))
}

func TestTranslateNonValidatorError(t *testing.T) {
	err := Translate(errors.New("unexpected EOF"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "invalid request body", apperr.PublicMessage(err))
}

func TestSnake(t *testing.T) {
	assert.Equal(t, "start_date", snake("StartDate"))
	assert.Equal(t, "id", snake("id"))
}
