package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/walletbridge/authbridge/internal/identity"
	"github.com/walletbridge/authbridge/internal/metrics"
	"github.com/walletbridge/authbridge/internal/notification"
	"github.com/walletbridge/authbridge/internal/wallet"
)

// TokenVerifier validates inbound identity tokens.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// SessionIssuer signs first-party session tokens.
type SessionIssuer interface {
	Issue(user identity.User) (string, error)
}

// Session is the result of a successful exchange.
type Session struct {
	AccessToken string
	User        identity.User
	Created     bool
	Diff        wallet.Diff
}

// Service exchanges a verified identity token for a session token, bringing
// the stored user and wallets in line with the token on the way.
type Service struct {
	verifier TokenVerifier
	issuer   SessionIssuer
	repo     identity.Repository
	notifier notification.Notifier
	logger   *slog.Logger
	source   string
}

// NewService wires the exchange pipeline. notifier may be nil.
func NewService(verifier TokenVerifier, issuer SessionIssuer, repo identity.Repository, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{verifier: verifier, issuer: issuer, repo: repo, notifier: notifier, logger: logger}
}

// WithSource tags emitted events with the producing instance.
func (s *Service) WithSource(source string) *Service {
	s.source = source
	return s
}

// Exchange verifies token, resolves or creates the user, converges its
// wallets and signs a session token. User and wallet writes share one
// transaction, so a failed exchange leaves no partial state behind.
func (s *Service) Exchange(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		metrics.ObserveExchange(metrics.OutcomeMissingCredential)
		return Session{}, ErrMissingCredential
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		metrics.ObserveExchange(metrics.OutcomeInvalidToken)
		return Session{}, err
	}
	addresses := claims.WalletAddresses()

	var session Session
	err = s.repo.WithinTx(ctx, func(store identity.Store) error {
		user, err := store.FindByEmail(ctx, claims.Email)
		if errors.Is(err, identity.ErrNotFound) {
			user, err = store.CreateUser(ctx, claims.Email, claims.Subject)
			if err == nil {
				if err := wallet.Provision(ctx, store, user.ID, addresses); err != nil {
					return err
				}
				user.Wallets = addresses
				session = Session{User: user, Created: true, Diff: wallet.Diff{ToInsert: addresses}}
				return nil
			}
			if !errors.Is(err, identity.ErrUserExists) {
				return err
			}
			// A concurrent exchange committed the user first.
			user, err = store.FindByEmail(ctx, claims.Email)
		}
		if err != nil {
			return err
		}

		diff, err := wallet.Reconcile(ctx, store, user.ID, addresses)
		if err != nil {
			return err
		}
		user.Wallets = addresses
		session = Session{User: user, Diff: diff}
		return nil
	})
	if err != nil {
		metrics.ObserveExchange(outcomeFor(err))
		return Session{}, err
	}

	session.AccessToken, err = s.issuer.Issue(session.User)
	if err != nil {
		metrics.ObserveExchange(outcomeFor(err))
		return Session{}, err
	}

	metrics.AddWalletChanges(len(session.Diff.ToInsert), len(session.Diff.ToDelete))
	if session.Created {
		metrics.ObserveExchange(metrics.OutcomeCreated)
	} else {
		metrics.ObserveExchange(metrics.OutcomeReconciled)
	}
	s.publish(ctx, session)

	s.logger.Info("token exchanged",
		slog.String("user_id", session.User.ID),
		slog.Bool("created", session.Created),
		slog.Int("wallets_inserted", len(session.Diff.ToInsert)),
		slog.Int("wallets_deleted", len(session.Diff.ToDelete)),
	)
	return session, nil
}

// publish is best effort: the exchange has already committed.
func (s *Service) publish(ctx context.Context, session Session) {
	if s.notifier == nil {
		return
	}
	var events []notification.Event
	base := notification.Event{
		UserID:     session.User.ID,
		Email:      session.User.Email,
		Source:     s.source,
		OccurredAt: time.Now().UTC(),
	}
	if session.Created {
		e := base
		e.Kind = notification.KindUserCreated
		e.Inserted = session.Diff.ToInsert
		events = append(events, e)
	} else if !session.Diff.Empty() {
		e := base
		e.Kind = notification.KindWalletsReconciled
		e.Inserted = session.Diff.ToInsert
		e.Deleted = session.Diff.ToDelete
		events = append(events, e)
	}
	for _, e := range events {
		if err := s.notifier.Send(ctx, e); err != nil {
			s.logger.Warn("publish event failed", slog.String("kind", e.Kind), slog.Any("error", err))
		}
	}
}

func outcomeFor(err error) string {
	var (
		tokenErr   *TokenInvalidError
		signErr    *SigningError
		persistErr *identity.PersistenceError
	)
	switch {
	case errors.Is(err, ErrMissingCredential):
		return metrics.OutcomeMissingCredential
	case errors.As(err, &tokenErr):
		return metrics.OutcomeInvalidToken
	case errors.As(err, &signErr):
		return metrics.OutcomeSigningError
	case errors.As(err, &persistErr):
		return metrics.OutcomePersistenceError
	default:
		return metrics.OutcomeError
	}
}
