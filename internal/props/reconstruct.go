package props

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// arrayNode holds array elements by index while rows are still arriving.
// Indices may be assigned in any order; materialize compacts them into a
// dense slice in ascending index order.
type arrayNode map[int]any

// Reconstruct rebuilds the payload tree a set of attribute rows was
// flattened from. Rows may arrive in any order.
func Reconstruct(rows []Attribute) (map[string]any, error) {
	root := make(map[string]any)
	for i := range rows {
		if err := insertRow(root, &rows[i]); err != nil {
			return nil, err
		}
	}
	materialize(root)
	return root, nil
}

func insertRow(root map[string]any, row *Attribute) error {
	segments := row.Path
	if len(segments) == 0 && row.Key != "" {
		segments = strings.Split(row.Key, ".")
	}
	if len(segments) == 0 || segments[0] == "" {
		return fmt.Errorf("attribute for entity %s has an empty path", row.EntityID)
	}

	value, err := columnValue(row)
	if err != nil {
		return err
	}

	var container any = root
	for i := 0; i < len(segments)-1; i++ {
		_, nextNumeric := parseIndex(segments[i+1])
		container, err = descend(container, segments[i], nextNumeric)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", row.Key, err)
		}
	}

	last := segments[len(segments)-1]
	if idx, numeric := parseIndex(last); numeric {
		if arr, ok := container.(arrayNode); ok {
			if row.IsArrayElement && row.ArrayIndex != nil {
				arr[*row.ArrayIndex] = value
			} else {
				arr[idx] = value
			}
			return nil
		}
	}

	obj, ok := container.(map[string]any)
	if !ok {
		return fmt.Errorf("attribute %q: parent is not an object", row.Key)
	}
	obj[last] = value
	return nil
}

func descend(container any, segment string, nextNumeric bool) (any, error) {
	switch parent := container.(type) {
	case map[string]any:
		child, exists := parent[segment]
		if !exists || !containerKindMatches(child, nextNumeric) {
			child = newContainer(nextNumeric)
			parent[segment] = child
		}
		return child, nil
	case arrayNode:
		idx, ok := parseIndex(segment)
		if !ok {
			return nil, fmt.Errorf("segment %q is not an array index", segment)
		}
		child, exists := parent[idx]
		if !exists || !containerKindMatches(child, nextNumeric) {
			child = newContainer(nextNumeric)
			parent[idx] = child
		}
		return child, nil
	default:
		return nil, fmt.Errorf("cannot descend through leaf at segment %q", segment)
	}
}

func newContainer(numeric bool) any {
	if numeric {
		return arrayNode{}
	}
	return make(map[string]any)
}

func containerKindMatches(value any, numeric bool) bool {
	if numeric {
		_, ok := value.(arrayNode)
		return ok
	}
	_, ok := value.(map[string]any)
	return ok
}

func parseIndex(segment string) (int, bool) {
	idx, err := strconv.Atoi(segment)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func columnValue(row *Attribute) (any, error) {
	switch row.Type {
	case TypeString:
		if row.ValueString == nil {
			return nil, nil
		}
		return *row.ValueString, nil
	case TypeReference:
		if row.ValueReference == nil {
			return nil, nil
		}
		return *row.ValueReference, nil
	case TypeBoolean:
		if row.ValueBoolean == nil {
			return nil, nil
		}
		return *row.ValueBoolean, nil
	case TypeInteger:
		if row.ValueInteger == nil {
			return nil, nil
		}
		return *row.ValueInteger, nil
	case TypeNumber:
		if row.ValueNumber == nil {
			return nil, nil
		}
		return *row.ValueNumber, nil
	case TypeJSON:
		if row.ValueJSON == nil {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(*row.ValueJSON), &decoded); err != nil {
			return nil, fmt.Errorf("decoding json value at %q: %w", row.Key, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown value type %q at %q", row.Type, row.Key)
	}
}

func materialize(obj map[string]any) {
	for key, value := range obj {
		obj[key] = materializeValue(value)
	}
}

func materializeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		materialize(v)
		return v
	case arrayNode:
		indices := make([]int, 0, len(v))
		for idx := range v {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		out := make([]any, 0, len(v))
		for _, idx := range indices {
			out = append(out, materializeValue(v[idx]))
		}
		return out
	case []any:
		for i := range v {
			v[i] = materializeValue(v[i])
		}
		return v
	default:
		return v
	}
}
