package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a jsonb column holding an arbitrary object.
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported type for JSON: %T", value)
	}
}

// StringList is a jsonb column holding a list of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

func (l StringList) Contains(s string) bool {
	for _, item := range l {
		if item == s {
			return true
		}
	}
	return false
}

// PermissionMap maps a resource name to its allowed actions. The wildcard
// "*" is valid both as a resource and as an action.
type PermissionMap map[string][]string

func (p PermissionMap) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(map[string][]string{})
	}
	return json.Marshal(map[string][]string(p))
}

func (p *PermissionMap) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported type for PermissionMap: %T", value)
	}
}

// Validate rejects permission maps with empty resources or actions. Maps are
// checked at write time so the read path can trust their shape.
func (p PermissionMap) Validate() error {
	for resource, actions := range p {
		if resource == "" {
			return fmt.Errorf("permission map contains empty resource")
		}
		if len(actions) == 0 {
			return fmt.Errorf("resource %q has no actions", resource)
		}
		for _, action := range actions {
			if action == "" {
				return fmt.Errorf("resource %q contains empty action", resource)
			}
		}
	}
	return nil
}
