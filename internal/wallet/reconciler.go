package wallet

import (
	"context"
	"fmt"
)

// Plan computes which stored addresses must go and which verified addresses
// must be added. Both slices keep the order of their source list.
func Plan(current, verified []string) Diff {
	current, verified = Normalize(current), Normalize(verified)
	currentSet := toSet(current)
	verifiedSet := toSet(verified)

	var diff Diff
	for _, addr := range current {
		if _, ok := verifiedSet[addr]; !ok {
			diff.ToDelete = append(diff.ToDelete, addr)
		}
	}
	for _, addr := range verified {
		if _, ok := currentSet[addr]; !ok {
			diff.ToInsert = append(diff.ToInsert, addr)
		}
	}
	return diff
}

func toSet(addresses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		set[addr] = struct{}{}
	}
	return set
}

// Reconcile converges the stored wallets of userID to verified. Deletes are
// applied before inserts so a unique (user_id, address) index never sees a
// transient duplicate. Callers wrap the pass in a transaction.
func Reconcile(ctx context.Context, store Store, userID string, verified []string) (Diff, error) {
	current, err := store.ListWalletAddresses(ctx, userID)
	if err != nil {
		return Diff{}, fmt.Errorf("list wallets: %w", err)
	}

	diff := Plan(current, verified)
	if diff.Empty() {
		return diff, nil
	}

	for _, addr := range diff.ToDelete {
		if err := store.DeleteWalletByAddress(ctx, userID, addr); err != nil {
			return Diff{}, fmt.Errorf("delete wallet %s: %w", addr, err)
		}
	}
	for _, addr := range diff.ToInsert {
		if err := store.InsertWallet(ctx, userID, addr); err != nil {
			return Diff{}, fmt.Errorf("insert wallet %s: %w", addr, err)
		}
	}
	return diff, nil
}

// Provision inserts every address for a user that has no stored wallets yet.
func Provision(ctx context.Context, store Store, userID string, addresses []string) error {
	for _, addr := range Normalize(addresses) {
		if err := store.InsertWallet(ctx, userID, addr); err != nil {
			return fmt.Errorf("insert wallet %s: %w", addr, err)
		}
	}
	return nil
}

// Normalize drops empty entries and collapses exact duplicates while keeping
// the first occurrence order. Addresses are otherwise stored as attested.
func Normalize(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
