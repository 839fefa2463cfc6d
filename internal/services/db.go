package services

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DB is the transaction source for the ledger services. *pgxpool.Pool
// satisfies it; tests substitute a fake.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
