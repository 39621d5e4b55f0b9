package entity

import (
	"time"

	"github.com/google/uuid"
)

// Validator проверяет документ перед сохранением
type Validator func(d *Datum) error

// DefaultValidator минимальные правила для типов, которые участвуют в синхронизации
func DefaultValidator(d *Datum) error {
	var issues []string
	require := func(field string) {
		if d.String(field) == "" {
			issues = append(issues, field+" is required")
		}
	}

	switch d.Type {
	case TypeCollection:
		require("name")
	case TypeItem:
		require("name")
		require("collection_id")
	case TypeItemImage:
		require("item_id")
		require("image_id")
	}

	if len(issues) > 0 {
		return &ValidationError{Type: d.Type, ID: d.ID, Issues: issues}
	}
	return nil
}

// Prepare применяет общую для всех хранилищ семантику сохранения:
// назначает id, проставляет временные метки и валидирует документ.
// existing может быть nil, если документ сохраняется впервые.
func Prepare(existing, d *Datum, opts SaveOptions, now time.Time, validate Validator) (*Datum, error) {
	out := d.Clone()

	switch {
	case existing == nil:
		if out.CreatedAt.IsZero() {
			out.CreatedAt = now
		}
		out.UpdatedAt = now
	case opts.NoTouch:
		out.CreatedAt = existing.CreatedAt
		out.UpdatedAt = existing.UpdatedAt
	default:
		out.CreatedAt = existing.CreatedAt
		out.UpdatedAt = now
	}

	if validate == nil {
		validate = DefaultValidator
	}
	// id назначается после валидации, чтобы сообщение об ошибке нового документа было стабильным
	defer func() {
		if out != nil && out.ID == "" {
			out.ID = uuid.NewString()
		}
	}()

	if out.Deleted {
		return out, nil
	}
	if err := validate(out); err != nil {
		if !opts.SkipValidation {
			return nil, err
		}
		out.Valid = false
		return out, nil
	}
	out.Valid = true
	return out, nil
}
