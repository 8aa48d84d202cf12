package sqlite

import (
	"context"
	"database/sql"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, handle, email, display_name, password_hash, external_id, refresh_fp, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByHandle(ctx context.Context, handle string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE handle = ?`, handle)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserByExternalOrEmail(
	ctx context.Context,
	externalID, email string,
) (domain.User, error) {
	// Either match is a hit. Prefer the external-id match when both exist:
	// it is the stronger linkage.
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE external_id = ? OR email = ?
		 ORDER BY external_id = ? DESC
		 LIMIT 1`,
		externalID, email, externalID)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := nowUTC()
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, handle, email, display_name, password_hash, external_id, refresh_fp, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Handle, u.Email, u.DisplayName, u.PasswordHash,
		mapOptionalString(u.ExternalID), mapOptionalString(u.RefreshFingerprint),
		now, now)
	return mapWriteError(err)
}

func (r *usersRepo) SetExternalID(ctx context.Context, userID, externalID string) error {
	// One-way write: never overwrite an existing different linkage.
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET external_id = ?, updated_at = ?
		 WHERE id = ? AND external_id IS NULL`,
		externalID, nowUTC(), userID)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *usersRepo) SaveRefreshFingerprint(ctx context.Context, userID string, fp *string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET refresh_fp = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(fp), nowUTC(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) SaveRefreshFingerprintIfMatches(
	ctx context.Context,
	userID, expected, next string,
) (bool, error) {
	// Single conditional UPDATE: the read-compare-overwrite is one atomic
	// statement, so concurrent rotations with the same stale token cannot
	// both succeed.
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET refresh_fp = ?, updated_at = ?
		 WHERE id = ? AND refresh_fp = ?`,
		next, nowUTC(), userID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) ClearRefreshFingerprintIfMatches(
	ctx context.Context,
	userID, expected string,
) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET refresh_fp = NULL, updated_at = ?
		 WHERE id = ? AND refresh_fp = ?`,
		nowUTC(), userID, expected)
	return err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var externalID, refreshFP sql.NullString
	err := row.Scan(
		&u.ID, &u.Handle, &u.Email, &u.DisplayName, &u.PasswordHash,
		&externalID, &refreshFP, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.ExternalID = mapNullStringPtr(externalID)
	u.RefreshFingerprint = mapNullStringPtr(refreshFP)
	return u, nil
}
