package wallet

import "context"

// Store is the persistence surface the reconciler drives. Implementations are
// expected to be bound to a single transaction for the duration of a pass.
type Store interface {
	ListWalletAddresses(ctx context.Context, userID string) ([]string, error)
	InsertWallet(ctx context.Context, userID, address string) error
	DeleteWalletByAddress(ctx context.Context, userID, address string) error
}

// Lister reads the stored wallets of a user.
type Lister interface {
	ListWallets(ctx context.Context, userID string) ([]Wallet, error)
}
