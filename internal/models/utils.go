package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONMap is a jsonb column
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported jsonb value %T", value)
	}

	return json.Unmarshal(data, j)
}

// ToJSONMap flattens any json-encodable struct into a JSONMap
func ToJSONMap(v interface{}) (JSONMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
