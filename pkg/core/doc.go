// Package core defines the SQL syntax tree shared by the parser, the
// printer and the semantic rewriter.
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
