package apiclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const nonFieldErrors = "non_field_errors"

// duplicatePatterns are matched case-insensitively against every string in an error payload.
var duplicatePatterns = []string{"unique", "already exists", "已存在"}

// NormalizeMessage turns an error response body into a user-safe message.
//
// Uniqueness conflicts anywhere in the payload collapse to MsgDuplicate. Otherwise
// non_field_errors yield MsgValidationFailed, a string detail is returned as is, and
// field errors are summarized as "field: msg, msg" joined with "; " in field order.
// Bodies that are not JSON objects return an empty string so the status message applies.
func NormalizeMessage(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if containsDuplicate(payload) {
		return MsgDuplicate
	}

	fields, ok := payload.(map[string]any)
	if !ok || len(fields) == 0 {
		return ""
	}

	if _, ok := fields[nonFieldErrors]; ok {
		return MsgValidationFailed
	}

	if detail, ok := fields["detail"].(string); ok && detail != "" {
		return detail
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var messages []string
	for _, k := range keys {
		if text := fieldText(fields[k]); text != "" {
			messages = append(messages, k+": "+text)
		}
	}

	if len(messages) == 0 {
		return MsgRequestFailed
	}

	return strings.Join(messages, "; ")
}

func containsDuplicate(v any) bool {
	switch val := v.(type) {
	case string:
		lower := strings.ToLower(val)
		for _, p := range duplicatePatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if containsDuplicate(item) {
				return true
			}
		}
	case map[string]any:
		for _, item := range val {
			if containsDuplicate(item) {
				return true
			}
		}
	}
	return false
}

func fieldText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if text := fieldText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
