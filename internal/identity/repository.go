package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletbridge/authbridge/internal/wallet"
)

// Store is the set of user and wallet operations available inside or outside a transaction.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, email, externalID string) (User, error)
	InsertWallet(ctx context.Context, userID, address string) error
	DeleteWalletByAddress(ctx context.Context, userID, address string) error
	ListWalletAddresses(ctx context.Context, userID string) ([]string, error)
	ListWallets(ctx context.Context, userID string) ([]wallet.Wallet, error)
}

// Repository persists users and their wallets.
type Repository interface {
	Store
	// WithinTx runs fn against a Store whose writes commit together or not at all.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pgStore
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pgStore: pgStore{db: pool}, pool: pool}
}

// WithinTx runs fn inside a single database transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistenceError("commit transaction", err)
	}
	return nil
}

type pgStore struct {
	db DBTX
}

// FindByEmail fetches a user and the addresses of its wallets.
func (s *pgStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const query = `
        SELECT u.id, u.email, u.external_id, u.created_at, u.updated_at,
               COALESCE(array_agg(w.address ORDER BY w.created_at, w.address)
                        FILTER (WHERE w.id IS NOT NULL), '{}') AS wallets
        FROM users u
        LEFT JOIN wallets w ON w.user_id = u.id
        WHERE u.email = $1
        GROUP BY u.id`

	var (
		id   uuid.UUID
		user User
	)
	err := s.db.QueryRow(ctx, query, NormalizeEmail(email)).
		Scan(&id, &user.Email, &user.ExternalID, &user.CreatedAt, &user.UpdatedAt, &user.Wallets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, persistenceError("find user by email", err)
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// CreateUser inserts a user. A taken email yields ErrUserExists rather than a
// constraint violation so concurrent first logins can fall back to a lookup.
func (s *pgStore) CreateUser(ctx context.Context, email, externalID string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, fmt.Errorf("create user: email is required")
	}

	const query = `
        INSERT INTO users (id, email, external_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (email) DO NOTHING
        RETURNING id, email, external_id, created_at, updated_at`

	var (
		id   uuid.UUID
		user User
	)
	err := s.db.QueryRow(ctx, query, uuid.New(), email, externalID, time.Now().UTC()).
		Scan(&id, &user.Email, &user.ExternalID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserExists
		}
		return User{}, persistenceError("create user", err)
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	user.Wallets = []string{}
	return user, nil
}

// InsertWallet stores an address for a user; an already stored pair is left untouched.
func (s *pgStore) InsertWallet(ctx context.Context, userID, address string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("insert wallet: invalid user id %q: %w", userID, err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, address, user_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (user_id, address) DO NOTHING`, uuid.New(), address, uid, now)
	return persistenceError("insert wallet", err)
}

// DeleteWalletByAddress removes an address from a user's wallet set.
func (s *pgStore) DeleteWalletByAddress(ctx context.Context, userID, address string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("delete wallet: invalid user id %q: %w", userID, err)
	}
	_, err = s.db.Exec(ctx, `DELETE FROM wallets WHERE user_id = $1 AND address = $2`, uid, address)
	return persistenceError("delete wallet", err)
}

// ListWalletAddresses returns the stored addresses of a user.
func (s *pgStore) ListWalletAddresses(ctx context.Context, userID string) ([]string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: invalid user id %q: %w", userID, err)
	}
	rows, err := s.db.Query(ctx, `SELECT address FROM wallets WHERE user_id = $1 ORDER BY created_at, address`, uid)
	if err != nil {
		return nil, persistenceError("list wallet addresses", err)
	}
	addresses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, persistenceError("list wallet addresses", err)
	}
	return addresses, nil
}

// ListWallets returns the stored wallet rows of a user.
func (s *pgStore) ListWallets(ctx context.Context, userID string) ([]wallet.Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: invalid user id %q: %w", userID, err)
	}
	rows, err := s.db.Query(ctx, `SELECT id, address, user_id, created_at, updated_at
        FROM wallets WHERE user_id = $1 ORDER BY created_at, address`, uid)
	if err != nil {
		return nil, persistenceError("list wallets", err)
	}
	wallets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Wallet, error) {
		var (
			w       wallet.Wallet
			id      uuid.UUID
			ownerID uuid.UUID
		)
		if err := row.Scan(&id, &w.Address, &ownerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return wallet.Wallet{}, err
		}
		w.ID = id.String()
		w.UserID = ownerID.String()
		w.CreatedAt = w.CreatedAt.UTC()
		w.UpdatedAt = w.UpdatedAt.UTC()
		return w, nil
	})
	if err != nil {
		return nil, persistenceError("list wallets", err)
	}
	return wallets, nil
}
