package props

import (
	"sort"
	"strconv"
	"strings"
)

// Flatten walks an entity payload depth-first and emits one Attribute per
// leaf value. Object keys are visited in sorted order so the output is
// deterministic for a given payload. Empty objects and arrays emit a
// single json-typed sentinel row so reconstruction can restore them.
func Flatten(data map[string]any, entityID string) []Attribute {
	rows := make([]Attribute, 0, len(data))
	flattenObject(&rows, entityID, "", 0, data)
	return rows
}

func flattenObject(rows *[]Attribute, entityID, prefix string, depth int, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		childPath := key
		if prefix != "" {
			childPath = prefix + "." + key
		}

		switch value := obj[key].(type) {
		case []any:
			if len(value) == 0 {
				*rows = append(*rows, sentinelRow(entityID, childPath, depth, "[]"))
				continue
			}
			for i, element := range value {
				elementPath := childPath + "." + strconv.Itoa(i)
				if child, ok := element.(map[string]any); ok {
					if len(child) == 0 {
						row := sentinelRow(entityID, elementPath, depth+1, "{}")
						markArrayElement(&row, i)
						*rows = append(*rows, row)
						continue
					}
					flattenObject(rows, entityID, elementPath, depth+2, child)
					continue
				}
				row := leafRow(entityID, elementPath, depth+1, element)
				markArrayElement(&row, i)
				*rows = append(*rows, row)
			}
		case map[string]any:
			if len(value) == 0 {
				*rows = append(*rows, sentinelRow(entityID, childPath, depth, "{}"))
				continue
			}
			flattenObject(rows, entityID, childPath, depth+1, value)
		default:
			*rows = append(*rows, leafRow(entityID, childPath, depth, obj[key]))
		}
	}
}

func leafRow(entityID, key string, depth int, value any) Attribute {
	attr := Attribute{
		EntityID: entityID,
		Key:      key,
		Path:     strings.Split(key, "."),
		Depth:    depth,
	}
	valueType, column := Detect(value)
	setValue(&attr, valueType, column)
	return attr
}

func sentinelRow(entityID, key string, depth int, encoded string) Attribute {
	attr := Attribute{
		EntityID: entityID,
		Key:      key,
		Path:     strings.Split(key, "."),
		Depth:    depth,
	}
	setValue(&attr, TypeJSON, encoded)
	return attr
}

func markArrayElement(attr *Attribute, index int) {
	idx := index
	attr.ArrayIndex = &idx
	attr.IsArrayElement = true
	attr.Sort = index
}
