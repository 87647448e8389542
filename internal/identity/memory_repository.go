package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walletbridge/authbridge/internal/wallet"
)

type memoryState struct {
	users   map[string]User            // by id
	byEmail map[string]string          // email -> id
	wallets map[string][]wallet.Wallet // by user id, insertion ordered
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		users:   make(map[string]User, len(s.users)),
		byEmail: make(map[string]string, len(s.byEmail)),
		wallets: make(map[string][]wallet.Wallet, len(s.wallets)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = append([]wallet.Wallet(nil), v...)
	}
	return c
}

// MemoryRepository keeps users and wallets in process. Transactions work on a
// snapshot that replaces the live state only when fn succeeds.
type MemoryRepository struct {
	mu    sync.Mutex
	state memoryState
	now   func() time.Time
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: memoryState{
			users:   make(map[string]User),
			byEmail: make(map[string]string),
			wallets: make(map[string][]wallet.Wallet),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) store(state *memoryState) *memoryStore {
	return &memoryStore{state: state, now: r.now}
}

// WithinTx runs fn against a snapshot and publishes it on success.
func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(r.store(&snapshot)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return persistenceError("commit transaction", err)
	}
	r.state = snapshot
	return nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).FindByEmail(ctx, email)
}

func (r *MemoryRepository) CreateUser(ctx context.Context, email, externalID string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).CreateUser(ctx, email, externalID)
}

func (r *MemoryRepository) InsertWallet(ctx context.Context, userID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).InsertWallet(ctx, userID, address)
}

func (r *MemoryRepository) DeleteWalletByAddress(ctx context.Context, userID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).DeleteWalletByAddress(ctx, userID, address)
}

func (r *MemoryRepository) ListWalletAddresses(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).ListWalletAddresses(ctx, userID)
}

func (r *MemoryRepository) ListWallets(ctx context.Context, userID string) ([]wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(&r.state).ListWallets(ctx, userID)
}

// Users returns every stored user sorted by email.
func (r *MemoryRepository) Users() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.state.users))
	for _, u := range r.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

type memoryStore struct {
	state *memoryState
	now   func() time.Time
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	id, ok := s.state.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	user := s.state.users[id]
	user.Wallets = s.addresses(id)
	return user, nil
}

func (s *memoryStore) CreateUser(_ context.Context, email, externalID string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, fmt.Errorf("create user: email is required")
	}
	if _, exists := s.state.byEmail[email]; exists {
		return User{}, ErrUserExists
	}
	now := s.now()
	user := User{
		ID:         uuid.NewString(),
		Email:      email,
		ExternalID: externalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.state.users[user.ID] = user
	s.state.byEmail[email] = user.ID
	user.Wallets = []string{}
	return user, nil
}

func (s *memoryStore) InsertWallet(_ context.Context, userID, address string) error {
	if _, ok := s.state.users[userID]; !ok {
		return persistenceError("insert wallet", fmt.Errorf("user %s does not exist", userID))
	}
	for _, w := range s.state.wallets[userID] {
		if w.Address == address {
			return nil
		}
	}
	now := s.now()
	s.state.wallets[userID] = append(s.state.wallets[userID], wallet.Wallet{
		ID:        uuid.NewString(),
		Address:   address,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return nil
}

func (s *memoryStore) DeleteWalletByAddress(_ context.Context, userID, address string) error {
	current := s.state.wallets[userID]
	kept := make([]wallet.Wallet, 0, len(current))
	for _, w := range current {
		if w.Address != address {
			kept = append(kept, w)
		}
	}
	s.state.wallets[userID] = kept
	return nil
}

func (s *memoryStore) ListWalletAddresses(_ context.Context, userID string) ([]string, error) {
	return s.addresses(userID), nil
}

func (s *memoryStore) ListWallets(_ context.Context, userID string) ([]wallet.Wallet, error) {
	return append([]wallet.Wallet{}, s.state.wallets[userID]...), nil
}

func (s *memoryStore) addresses(userID string) []string {
	out := make([]string, 0, len(s.state.wallets[userID]))
	for _, w := range s.state.wallets[userID] {
		out = append(out, w.Address)
	}
	return out
}
