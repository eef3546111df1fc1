package tools

import (
	"fmt"
	"sort"
)

// ValidateArgs checks args against a JSON-schema subset: the "required"
// list and the "type" of each declared property. A nil schema accepts
// anything.
func ValidateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	for _, field := range stringList(schema["required"]) {
		v, ok := args[field]
		if !ok || v == nil {
			return fmt.Errorf("missing required argument %q", field)
		}
		if s, isStr := v.(string); isStr && s == "" {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, present := args[name]
		if !present || v == nil {
			continue
		}
		spec, _ := props[name].(map[string]interface{})
		want, _ := spec["type"].(string)
		if want != "" && !hasType(v, want) {
			return fmt.Errorf("argument %q must be of type %s", name, want)
		}
	}
	return nil
}

func hasType(v interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		switch v.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	}
	return true
}

func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
