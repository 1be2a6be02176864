package stores

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

// TxKey carries an open transaction through a context so store calls made
// inside WithTransaction share it.
const TxKey contextKey = "tx"

type BaseStore struct {
	db *gorm.DB
}

// GetDB resolves the handle for one call: the transaction on the context
// when one is open, the pooled connection otherwise.
func (s *BaseStore) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxKey).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTransaction runs fn inside a single transaction, visible to nested
// store calls through the returned context.
func (s *BaseStore) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, TxKey, tx))
	})
}

// paginate is the shared limit/offset scope for list queries.
func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}
