package providers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// FieldVariants maps a canonical field name to every spelling an upstream
// has been observed using. Each adapter declares its table once instead of
// scattering fallback chains through parsing code.
type FieldVariants map[string][]string

// ExtractRows unwraps the record list from a decoded JSON payload. Upstream
// envelopes differ per endpoint, so the known wrapper keys are tried in
// order before giving up.
func ExtractRows(payload any, wrapperKeys ...string) ([]map[string]any, error) {
	switch typed := payload.(type) {
	case []any:
		return toRowList(typed), nil
	case map[string]any:
		for _, key := range wrapperKeys {
			if raw, ok := typed[key]; ok {
				return ExtractRows(raw, wrapperKeys...)
			}
		}
		return nil, errors.New("unexpected response shape")
	default:
		return nil, errors.New("unexpected response type")
	}
}

func toRowList(items []any) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// FieldString resolves the canonical field through the variant table.
func (v FieldVariants) FieldString(row map[string]any, field string) (string, bool) {
	value, ok := fieldValue(row, v[field])
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

func (v FieldVariants) FieldFloat(row map[string]any, field string) (float64, bool) {
	value, ok := fieldValue(row, v[field])
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func fieldValue(row map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if value, ok := row[key]; ok {
			return value, true
		}
	}
	for rowKey, value := range row {
		for _, key := range keys {
			if strings.EqualFold(rowKey, key) {
				return value, true
			}
		}
	}
	return nil, false
}
