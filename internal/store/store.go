package store

import (
	"context"
	"errors"

	"github.com/bookery-social/bookery/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this. It exposes sub-repositories to keep
// concerns tidy and testable.
type Store interface {
	Users() Users
	Books() Books

	ApplyMigrations() error

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByHandle is used during password login and handle-collision checks.
	GetUserByHandle(ctx context.Context, handle string) (domain.User, error)

	// GetUserByEmail is used during password login with an email address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByExternalOrEmail returns a user matching EITHER the federated
	// external id OR the verified email. Either match is a hit: a user may
	// have registered locally first and signed in federally later.
	GetUserByExternalOrEmail(ctx context.Context, externalID, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists on a handle/email/external-id uniqueness
	// violation, distinguishable from other write failures.
	CreateUser(ctx context.Context, u domain.User) error

	// SetExternalID attaches a federated linkage to an existing user.
	// One-way write: it only succeeds where no linkage is present yet.
	SetExternalID(ctx context.Context, userID, externalID string) error

	// SaveRefreshFingerprint stores the fingerprint of the currently valid
	// refresh token, superseding any previous one. Nil clears it (logout).
	SaveRefreshFingerprint(ctx context.Context, userID string, fp *string) error

	// SaveRefreshFingerprintIfMatches conditionally replaces the stored
	// fingerprint only when it still equals expected. Returns false when the
	// fingerprint was already superseded. This is the rotation primitive:
	// of two concurrent rotations with the same token exactly one wins.
	SaveRefreshFingerprintIfMatches(ctx context.Context, userID, expected, next string) (bool, error)

	// ClearRefreshFingerprintIfMatches clears the stored fingerprint only
	// where it still equals expected. Idempotent: clearing an already
	// superseded or absent fingerprint is not an error.
	ClearRefreshFingerprintIfMatches(ctx context.Context, userID, expected string) error
}

type Books interface {
	// CreateBook inserts a new book posting (id is ULID).
	CreateBook(ctx context.Context, b domain.Book) error

	// ListRecent returns a bounded page of the most recent books, newest
	// first. The search proxy ranks whatever page it is given and never
	// paginates further.
	ListRecent(ctx context.Context, limit int) ([]domain.Book, error)
}
