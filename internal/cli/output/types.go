package output

// TransformOutput is the JSON shape of one transformed query.
type TransformOutput struct {
	Name  string `json:"name,omitempty"`
	SQL   string `json:"sql,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidateOutput is the JSON shape of a validation rule result.
type ValidateOutput struct {
	Rule  string `json:"rule"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HopInfo is one relationship traversal of a lineage.
type HopInfo struct {
	Relationship string `json:"relationship"`
	From         string `json:"from"`
	To           string `json:"to"`
	Column       string `json:"column"`
	JoinType     string `json:"joinType"`
}

// LineageOutput is the JSON shape of a column lineage.
type LineageOutput struct {
	Column       string    `json:"column"`
	Kind         string    `json:"kind"`
	Refs         []string  `json:"refs"`
	Dependencies []string  `json:"dependencies"`
	Sources      []string  `json:"sources"`
	Hops         []HopInfo `json:"hops"`
	Dependents   []string  `json:"dependents"`
}

// ColumnInfo describes a dataset column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Kind         string `json:"kind"`
	Expression   string `json:"expression,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	NotNull      bool   `json:"notNull,omitempty"`
}

// DatasetInfo describes a model or metric.
type DatasetInfo struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Source  string       `json:"source,omitempty"`
	Columns []ColumnInfo `json:"columns"`
}

// RelationshipInfo describes a relationship.
type RelationshipInfo struct {
	Name      string   `json:"name"`
	Models    []string `json:"models"`
	JoinType  string   `json:"joinType"`
	Condition string   `json:"condition"`
}

// DescribeOutput is the JSON shape of a manifest description.
type DescribeOutput struct {
	Catalog       string             `json:"catalog"`
	Schema        string             `json:"schema"`
	Hash          string             `json:"hash"`
	Datasets      []DatasetInfo      `json:"datasets"`
	Relationships []RelationshipInfo `json:"relationships"`
	Views         []string           `json:"views"`
}

// HistoryEntry is the JSON shape of a recorded transform.
type HistoryEntry struct {
	ID         string `json:"id"`
	Manifest   string `json:"manifest"`
	SQL        string `json:"sql"`
	Rewritten  string `json:"rewritten,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  string `json:"createdAt"`
}
