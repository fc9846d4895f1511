package service

import (
	"sync"

	"github.com/go-playground/validator/v10"

	apperr "github.com/studyflow/backend/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// checkInput validates a façade input struct. Violations are programmer or
// caller error, the one class the façade rejects synchronously.
func checkInput(v any) error {
	if err := getValidator().Struct(v); err != nil {
		return apperr.Wrap(apperr.ErrInvalid, "invalid input", err)
	}
	return nil
}

type assignmentInput struct {
	UserID string `validate:"required"`
	Title  string `validate:"required,max=200"`
	Status string `validate:"omitempty,oneof=todo in_progress done"`
}

type habitInput struct {
	UserID   string `validate:"required"`
	Name     string `validate:"required,max=100"`
	Schedule string `validate:"omitempty,oneof=daily weekdays weekly"`
}

type settingsInput struct {
	UserID             string `validate:"required"`
	FocusSeconds       int    `validate:"gt=0,lte=14400"`
	ShortBreakSeconds  int    `validate:"gt=0,lte=3600"`
	LongBreakSeconds   int    `validate:"gt=0,lte=7200"`
	SessionsBeforeLong int    `validate:"gt=0,lte=12"`
}

type focusSessionInput struct {
	UserID         string `validate:"required"`
	Mode           string `validate:"required,oneof=focus short_break long_break"`
	PlannedSeconds int    `validate:"gt=0"`
	ActualSeconds  int    `validate:"gte=0"`
	StartedAt      int64  `validate:"gt=0"`
}
