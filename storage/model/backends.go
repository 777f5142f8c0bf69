package model

import (
	"context"
)

// UnitOfWork groups the stores that share one database session. When
// obtained from Transactor.Transaction all of them write through the same
// transaction.
type UnitOfWork interface {
	Keys() KeyStore
	AuditLog() AuditLogStore
	KV() KeyValueStore
}

// Transactor hands out units of work
type Transactor interface {
	// Transaction runs fn in a single database transaction. The transaction
	// is committed if fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
	// Session returns stores bound to ctx without an explicit transaction,
	// for reads and single-statement writes.
	Session(ctx context.Context) UnitOfWork
}

// Backends groups all storage interfaces used by the application.
// It provides a single struct that can be passed around instead of
// multiple return values for each storage backend.
type Backends struct {
	Tx    Transactor
	Users UsersStore
}
