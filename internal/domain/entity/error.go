package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("datum not found")
	ErrInvalid  = errors.New("invalid datum")
)

// ValidationError ошибка валидации документа перед сохранением
type ValidationError struct {
	Type   string
	ID     string
	Issues []string
}

func (e *ValidationError) Error() string {
	target := e.Type
	if e.ID != "" {
		target = fmt.Sprintf("%s %s", e.Type, e.ID)
	}
	return fmt.Sprintf("%s is invalid: %s", target, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}
