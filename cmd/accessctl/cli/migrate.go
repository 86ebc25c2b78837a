package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/bazaar-commerce/console/internal/platform/db"
)

// MigrateFunc applies pending schema migrations.
type MigrateFunc func(ctx context.Context) (*db.MigrationResult, error)

// MigrateCommand runs the migrations and prints the applied versions.
func MigrateCommand(ctx context.Context, run MigrateFunc, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	result, err := run(ctx)
	if result == nil {
		result = &db.MigrationResult{}
	}
	for _, v := range result.Applied {
		_, _ = fmt.Fprintf(stdout, "applied %04d\n", v)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return ExitFailure
	}
	_, _ = fmt.Fprintf(stdout, "schema up to date (%d applied, %d already present)\n", len(result.Applied), len(result.Skipped))
	return ExitOK
}
