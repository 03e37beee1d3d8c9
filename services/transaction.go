package services

import (
	"context"

	"github.com/alchemy-tracker/backend/repositories"
)

// WithTransaction runs fn inside a transaction owned by txMgr. The context
// passed to fn carries the transaction, so repository calls made with it
// join it. A panic in fn rolls back before re-panicking.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) error) error {
	return txMgr.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()
		return fn(txCtx)
	})
}

// WithTransactionResult is WithTransaction for functions that produce a value.
// The zero value is returned when the transaction does not commit.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := WithTransaction(ctx, txMgr, func(txCtx context.Context) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
