package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray stores string lists as JSON, while tolerating legacy plain-string data.
// A nil array is stored as NULL and scans back as nil.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}
	raw, ok, err := scanText(value)
	if err != nil {
		return fmt.Errorf("models.StringArray: %w", err)
	}
	if !ok {
		*a = nil
		return nil
	}

	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		*a = arr
		return nil
	}

	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if single == "" {
			*a = []string{}
		} else {
			*a = []string{single}
		}
		return nil
	}

	*a = []string{raw}
	return nil
}

// Contains reports whether v is in the array, ignoring case.
func (a StringArray) Contains(v string) bool {
	for _, item := range a {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// scanText normalises a driver value into trimmed text. ok is false for NULL or "null".
func scanText(value interface{}) (string, bool, error) {
	if value == nil {
		return "", false, nil
	}
	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return "", false, fmt.Errorf("unsupported Scan type %T", value)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", false, nil
	}
	return raw, true, nil
}
