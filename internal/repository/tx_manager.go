package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// txState is carried in the context for the lifetime of one outermost transaction
type txState struct {
	tx          *gorm.DB
	afterCommit []func()
}

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// RunInTx joins an enclosing transaction when ctx already carries one.
// Callbacks registered with AfterCommit run once the outermost transaction commits.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*txState); ok {
		return fn(ctx)
	}

	state := &txState{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey, state))
	})
	if err != nil {
		return err
	}
	for _, f := range state.afterCommit {
		f()
	}
	return nil
}

// AfterCommit defers f until the transaction in ctx commits. It is dropped on rollback.
// Outside a transaction f runs immediately.
func AfterCommit(ctx context.Context, f func()) {
	if state, ok := ctx.Value(txKey).(*txState); ok {
		state.afterCommit = append(state.afterCommit, f)
		return
	}
	f()
}

// GetDB returns the transaction bound to ctx, or rootDB outside one
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if state, ok := ctx.Value(txKey).(*txState); ok {
		return state.tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// forUpdate row-locks the selected rows until the surrounding transaction ends.
// Dialects without row locks (sqlite) drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
