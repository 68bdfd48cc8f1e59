package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string stored as a JSON array in a text column.
type StringList []string

// Value serializes the list for storage. A nil list stores as "[]" so reads
// never see NULL.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the list from a text or blob column.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// ReactionMap maps a storage role name to an emoji reaction. Stored as a
// JSON object in a text column.
type ReactionMap map[string]string

// Value serializes the map for storage. A nil map stores as "{}".
func (m ReactionMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the map from a text or blob column.
func (m *ReactionMap) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}
