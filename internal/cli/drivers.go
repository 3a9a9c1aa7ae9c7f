package cli

// Adapters register themselves, and their dialects, on import.
import (
	_ "github.com/leapstack-labs/semql/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/semql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/semql/pkg/adapters/sqlite"
)
