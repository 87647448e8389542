package wallet

import "time"

// Wallet is a blockchain address owned by exactly one user.
type Wallet struct {
	ID        string
	Address   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Diff is the minimal set of changes that converges stored addresses to a verified set.
type Diff struct {
	ToDelete []string
	ToInsert []string
}

// Empty reports whether applying the diff would change nothing.
func (d Diff) Empty() bool {
	return len(d.ToDelete) == 0 && len(d.ToInsert) == 0
}
