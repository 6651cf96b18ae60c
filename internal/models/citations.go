package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Citation is a web source referenced by a model answer.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Citations keeps provider order. A nil slice is stored as NULL.
type Citations []Citation

func (c Citations) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal([]Citation(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Citations) Scan(value interface{}) error {
	if c == nil {
		return fmt.Errorf("models.Citations: Scan on nil pointer")
	}
	raw, ok, err := scanText(value)
	if err != nil {
		return fmt.Errorf("models.Citations: %w", err)
	}
	if !ok {
		*c = nil
		return nil
	}

	var items []Citation
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		*c = items
		return nil
	}

	// bare URL lists written by older importers
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return fmt.Errorf("models.Citations: %w", err)
	}
	items = make([]Citation, 0, len(urls))
	for _, u := range urls {
		items = append(items, Citation{URL: u})
	}
	*c = items
	return nil
}
