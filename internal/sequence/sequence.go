// Package sequence allocates human-readable document numbers (SL-000123,
// INV-000042) from a persisted counter table, safe under concurrent
// transactions.
package sequence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Next increments the named counter and formats the new value with the
// given prefix. Runs on the caller's transaction handle so the number is
// allocated atomically with the document it identifies.
func Next(ctx context.Context, ext sqlx.ExtContext, name, prefix string) (string, error) {
	var value int64
	err := sqlx.GetContext(ctx, ext, &value, `
        INSERT INTO document_sequences (name, value)
        VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET value = document_sequences.value + 1
        RETURNING value
    `, name)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", name, err)
	}
	return fmt.Sprintf("%s-%06d", prefix, value), nil
}
