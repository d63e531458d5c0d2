package storage

// Logical column types. Each backend maps them to its own SQL types.
const (
	TypeString    = "string"    // short, indexable text
	TypeText      = "text"      // unbounded text
	TypeBigint    = "bigint"    // 64-bit integer
	TypeTimestamp = "timestamp" // instant, stored in UTC
	TypeJSON      = "json"      // JSON document
)

// TableSpec describes a table to create.
type TableSpec struct {
	Name        string           `json:"name"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

// ColumnSpec is one column. Type is one of the logical types above.
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// IsNullable defaults to true.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// ConstraintSpec is a table constraint. Only "unique" is supported.
type ConstraintSpec struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
}
