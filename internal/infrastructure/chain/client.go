// Package chain wraps the loan registry smart contract behind a narrow
// client interface. Calls are asynchronous: mutating operations return a
// transaction handle whose confirmation must be awaited before any off-chain
// state may depend on the outcome.
package chain

import "context"

// LoanState is the on-chain view of a loan.
type LoanState struct {
	URL    string
	Active bool
}

// Tx is a submitted transaction. Wait blocks until the transaction is mined
// and returns an error if mining fails, times out, or the transaction
// reverted.
type Tx interface {
	Hash() string
	Wait(ctx context.Context) error
}

// Client is the contract surface consumed by the reconcilers.
type Client interface {
	CreateLoan(ctx context.Context, classID, nonceID uint64, url string) (Tx, error)
	SetStatus(ctx context.Context, classID, nonceID uint64, active bool) (Tx, error)
	GetLoan(ctx context.Context, classID, nonceID uint64) (LoanState, error)
}
