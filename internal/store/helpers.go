package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// toJSON marshals v for storage in a nullable text/jsonb column. Nil and
// empty values are stored as NULL.
func toJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal column value: %w", err)
	}
	text := string(data)
	if text == "null" || text == "[]" || text == "{}" {
		return nil, nil
	}
	return text, nil
}

// fromJSON unmarshals a nullable column value into out. NULL leaves out
// untouched.
func fromJSON(col sql.NullString, out interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), out); err != nil {
		return fmt.Errorf("unmarshal column value: %w", err)
	}
	return nil
}
