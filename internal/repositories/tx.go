package repositories

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxRunner runs a function inside one database transaction. Repository calls
// made with the returned context join that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// gormTxRunner implements TxRunner on the write database.
type gormTxRunner struct {
	db *gorm.DB
}

// NewTxRunner creates a TxRunner bound to the write database.
func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

// WithTx opens a transaction unless the context already carries one.
func (r *gormTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// writer returns the transaction bound to ctx, or the write database.
func writer(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

// reader returns the transaction bound to ctx, or the read-only database.
// Reads inside a transaction must see that transaction's own writes.
func reader(ctx context.Context, readOnlyDB *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return readOnlyDB.WithContext(ctx)
}
