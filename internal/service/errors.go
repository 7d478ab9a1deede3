package service

import (
	"errors"
	"fmt"
)

// Ошибки ядра; операции оборачивают их через %w с понятной причиной
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("invalid state")
	ErrPaymentRequired    = errors.New("payment required")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrConflict           = errors.New("conflict")

	ErrTooEarly = errors.New("too early to join")
	ErrExpired  = fmt.Errorf("%w: session has already ended", ErrInvalidState)
)

// TooEarlyError - окно подключения ещё не открылось
type TooEarlyError struct {
	MinutesUntilJoin int
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("too early to join: window opens in %d minute(s)", e.MinutesUntilJoin)
}

// Is позволяет сравнивать и с ErrTooEarly, и с ErrInvalidState
func (e *TooEarlyError) Is(target error) bool {
	return target == ErrTooEarly || target == ErrInvalidState
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
