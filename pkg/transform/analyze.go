package transform

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/semql/pkg/lineage"
	"github.com/leapstack-labs/semql/pkg/mdl"
)

// AnalyzedModel is a manifest ready to serve transforms: its index, with
// the physical tables registered, and its column lineage. It is never
// modified after Analyze returns.
type AnalyzedModel struct {
	Index   *mdl.Index
	Lineage *lineage.Lineage
	hash    string
}

// Manifest returns the analyzed manifest.
func (am *AnalyzedModel) Manifest() *mdl.Manifest { return am.Index.Manifest() }

// Hash returns the content hash of the analyzed manifest.
func (am *AnalyzedModel) Hash() string { return am.hash }

type analyzeOptions struct {
	tables map[string]mdl.DataSource
}

// AnalyzeOption configures Analyze.
type AnalyzeOption func(*analyzeOptions)

// WithTables registers physical sources before schemas are inferred from
// the manifest. A model whose table reference names one of them is
// validated against that source instead of its inferred schema.
func WithTables(tables map[string]mdl.DataSource) AnalyzeOption {
	return func(o *analyzeOptions) {
		if o.tables == nil {
			o.tables = make(map[string]mdl.DataSource, len(tables))
		}
		for name, src := range tables {
			o.tables[name] = src
		}
	}
}

// Analyze indexes m, registers its physical tables and resolves its
// lineage. Unresolved references and dependency cycles fail here, before
// any query is seen.
func Analyze(m *mdl.Manifest, opts ...AnalyzeOption) (*AnalyzedModel, error) {
	var o analyzeOptions
	for _, opt := range opts {
		opt(&o)
	}

	idx, err := mdl.NewIndex(m)
	if err != nil {
		return nil, fmt.Errorf("index manifest: %w", err)
	}

	names := make([]string, 0, len(o.tables))
	for name := range o.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx.RegisterTable(name, o.tables[name])
	}
	idx.InferAndRegisterRemoteTables()

	lin, err := lineage.Resolve(idx)
	if err != nil {
		return nil, err
	}

	hash, err := m.Hash()
	if err != nil {
		return nil, err
	}
	return &AnalyzedModel{Index: idx, Lineage: lin, hash: hash}, nil
}
