package mapping

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"

	"airsync/internal/infrastructure/airtable"
)

// поля, которые меняет сама удаленная сторона
var volatileFields = map[string]bool{
	airtable.FieldRowNumber:         true,
	airtable.FieldModifiedAt:        true,
	airtable.FieldRecordID:          true,
	airtable.FieldContainerRecordID: true,
}

// HasFieldChanges сообщает, отличаются ли новые значения полей от текущих значений записи.
// Пустые значения (nil, "", false, 0, пустой массив) считаются равными между собой,
// вложения сравниваются только по именам файлов.
func HasFieldChanges(current, next map[string]any) bool {
	for key, nv := range next {
		if volatileFields[key] {
			continue
		}
		cv := current[key]
		if isEmpty(cv) && isEmpty(nv) {
			continue
		}
		if key == "Images" {
			if !slices.Equal(filenames(cv), filenames(nv)) {
				return true
			}
			continue
		}
		if !jsonEqual(cv, nv) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func filenames(v any) []string {
	var out []string
	add := func(m map[string]any) {
		if f, ok := m["filename"].(string); ok {
			out = append(out, f)
		}
	}
	switch xs := v.(type) {
	case []any:
		for _, x := range xs {
			if m, ok := x.(map[string]any); ok {
				add(m)
			}
		}
	case []map[string]any:
		for _, m := range xs {
			add(m)
		}
	}
	return out
}
