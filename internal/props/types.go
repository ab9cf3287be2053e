package props

type ValueType string

const (
	TypeString    ValueType = "string"
	TypeNumber    ValueType = "number"
	TypeInteger   ValueType = "integer"
	TypeBoolean   ValueType = "boolean"
	TypeJSON      ValueType = "json"
	TypeReference ValueType = "reference"
)

// Attribute is one leaf of an entity payload in its flattened form.
// Exactly one typed value field is set, selected by Type; a null payload
// value leaves all of them nil.
type Attribute struct {
	EntityID string
	Key      string
	Path     []string
	Depth    int
	Type     ValueType

	ValueString    *string
	ValueNumber    *float64
	ValueInteger   *int64
	ValueBoolean   *bool
	ValueJSON      *string
	ValueReference *string

	ArrayIndex     *int
	IsArrayElement bool
	Sort           int
}
