package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
)

const accountColumns = `id, username, email, first_name, last_name, phone, age, gender, password_hash, role,
	confirmed, blocked, deleted, status, availability, activation_code, otp_hash, otp_expires,
	change_account_info, permanently_deleted, last_recovered, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                                           domain.Account
		activationCode, otpHash                     sql.NullString
		otpExpires, changed, purgeAt, lastRecovered sql.NullTime
	)
	err := row.Scan(&a.Id, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.Phone, &a.Age, &a.Gender,
		&a.PassHash, &a.Role, &a.Confirmed, &a.Blocked, &a.Deleted, &a.Status, &a.Availability,
		&activationCode, &otpHash, &otpExpires, &changed, &purgeAt, &lastRecovered, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	a.ActivationCode = nullString(activationCode)
	a.OTPHash = nullString(otpHash)
	a.OTPExpires = nullTime(otpExpires)
	a.ChangeAccountInfo = nullTime(changed)
	a.PermanentlyDeleted = nullTime(purgeAt)
	a.LastRecovered = nullTime(lastRecovered)
	return a, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

// visible is the predicate conjoined to every account read.
func visible(opts []domain.LookupOption) string {
	if domain.NewLookup(opts...).IncludeDeleted {
		return ""
	}
	return " AND NOT deleted"
}

// =========================================================================
// Public Methods (satisfy service.AccountStorage and service.FollowStorage)
// =========================================================================

func (s *Storage) CreateAccount(ctx context.Context, account domain.Account) (domain.AccountId, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id domain.AccountId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createAccount(ctx, tx, account)
		return err
	})
	return id, err
}

func (s *Storage) AccountByID(ctx context.Context, id domain.AccountId, opts ...domain.LookupOption) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.accountWhere(ctx, s.db, "id = $1"+visible(opts), id)
}

func (s *Storage) AccountByLogin(ctx context.Context, login string, opts ...domain.LookupOption) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.accountWhere(ctx, s.db, "(username = $1 OR lower(email) = lower($1))"+visible(opts), login)
}

func (s *Storage) AccountByEmail(ctx context.Context, email domain.Email, opts ...domain.LookupOption) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.accountWhere(ctx, s.db, "lower(email) = lower($1)"+visible(opts), email)
}

func (s *Storage) ListAccounts(ctx context.Context, onlineOnly bool) ([]domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.listAccounts(ctx, s.db, onlineOnly)
}

func (s *Storage) ConfirmByActivationCode(ctx context.Context, code string) (domain.AccountId, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id domain.AccountId
	err := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET confirmed = TRUE, activation_code = NULL, updated_at = now()
		WHERE activation_code = $1 AND NOT deleted
		RETURNING id`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, internal_errors.ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to confirm account: %w", err)
	}
	return id, nil
}

func (s *Storage) SetSessionFlags(ctx context.Context, id domain.AccountId, status domain.Status, availability domain.Availability) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.updateOne(ctx, s.db,
		"UPDATE accounts SET status = $2, availability = $3, updated_at = now() WHERE id = $1 AND NOT deleted",
		id, status, availability)
}

func (s *Storage) SetAvailability(ctx context.Context, id domain.AccountId, availability domain.Availability) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.updateOne(ctx, s.db,
		"UPDATE accounts SET availability = $2, updated_at = now() WHERE id = $1",
		id, availability)
}

func (s *Storage) UpdatePassword(ctx context.Context, id domain.AccountId, passHash string, changedAt time.Time, deactivate bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.updateOne(ctx, s.db, `
		UPDATE accounts SET password_hash = $2, change_account_info = $3,
			status = CASE WHEN $4 THEN 'NotActive' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND NOT deleted`,
		id, passHash, changedAt, deactivate)
}

func (s *Storage) SetOTP(ctx context.Context, id domain.AccountId, otpHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.updateOne(ctx, s.db,
		"UPDATE accounts SET otp_hash = $2, otp_expires = $3, updated_at = now() WHERE id = $1 AND NOT deleted",
		id, otpHash, expires)
}

func (s *Storage) ResetPasswordWithOTP(ctx context.Context, id domain.AccountId, otpHash string, passHash string, changedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.cas(ctx, s.db, `
		UPDATE accounts SET password_hash = $3, change_account_info = $4, status = 'NotActive',
			otp_hash = NULL, otp_expires = NULL, updated_at = now()
		WHERE id = $1 AND otp_hash = $2 AND NOT deleted`,
		id, otpHash, passHash, changedAt)
}

func (s *Storage) SetBlocked(ctx context.Context, id domain.AccountId, blocked bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.cas(ctx, s.db,
		"UPDATE accounts SET blocked = $2, updated_at = now() WHERE id = $1 AND blocked <> $2",
		id, blocked)
}

func (s *Storage) SoftDelete(ctx context.Context, id domain.AccountId, deadline time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.cas(ctx, s.db, `
		UPDATE accounts SET deleted = TRUE, status = 'NotActive', permanently_deleted = $2, updated_at = now()
		WHERE id = $1 AND NOT deleted`,
		id, deadline)
}

func (s *Storage) RestoreSoftDeleted(ctx context.Context, id domain.AccountId, status domain.Status) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.cas(ctx, s.db, `
		UPDATE accounts SET deleted = FALSE, status = $2, permanently_deleted = NULL, updated_at = now()
		WHERE id = $1 AND deleted`,
		id, status)
	return err
}

func (s *Storage) Recover(ctx context.Context, id domain.AccountId, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.cas(ctx, s.db, `
		UPDATE accounts SET deleted = FALSE, status = 'Active', permanently_deleted = NULL,
			last_recovered = $2, updated_at = now()
		WHERE id = $1 AND deleted AND permanently_deleted > $2`,
		id, now)
}

// UpdateProfile applies u to a live account and reports false when the account is soft-deleted.
func (s *Storage) UpdateProfile(ctx context.Context, id domain.AccountId, u domain.ProfileUpdate) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.updateProfile(ctx, s.db, id, u)
}

// HardDeleteExpired purges soft-deleted accounts whose deadline is not after now.
// Follow edges go with them through ON DELETE CASCADE.
func (s *Storage) HardDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*queryTimeout)
	defer cancel()

	var purged int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM accounts WHERE deleted AND permanently_deleted <= $1", now)
		if err != nil {
			return fmt.Errorf("failed to purge accounts: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	return purged, err
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) createAccount(ctx context.Context, q Querier, a domain.Account) (domain.AccountId, error) {
	if a.Role == "" {
		a.Role = domain.RoleUser
	}
	if a.Status == "" {
		a.Status = domain.StatusNotActive
	}
	if a.Availability == "" {
		a.Availability = domain.Offline
	}

	var id domain.AccountId
	err := q.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email, first_name, last_name, phone, age, gender, password_hash, role,
			confirmed, blocked, deleted, status, availability, activation_code, permanently_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		a.Username, a.Email, a.FirstName, a.LastName, a.Phone, a.Age, a.Gender, a.PassHash, a.Role,
		a.Confirmed, a.Blocked, a.Deleted, a.Status, a.Availability, a.ActivationCode, a.PermanentlyDeleted,
	).Scan(&id)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return 0, conflict
		}
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	return id, nil
}

func (s *Storage) accountWhere(ctx context.Context, q Querier, where string, args ...interface{}) (domain.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where, args...)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, internal_errors.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

func (s *Storage) listAccounts(ctx context.Context, q Querier, onlineOnly bool) ([]domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE NOT deleted"
	if onlineOnly {
		query += " AND availability = 'Online'"
	}
	rows, err := q.QueryContext(ctx, query+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Storage) updateProfile(ctx context.Context, q Querier, id domain.AccountId, u domain.ProfileUpdate) (bool, error) {
	args := []interface{}{id}
	var sets []string
	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Username != nil {
		set("username", *u.Username)
	}
	if u.FirstName != nil {
		set("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		set("last_name", *u.LastName)
	}
	if u.Email != nil {
		set("email", *u.Email)
	}
	if u.Phone != nil {
		set("phone", *u.Phone)
	}
	if u.Age != nil {
		set("age", *u.Age)
	}
	if u.Gender != nil {
		set("gender", *u.Gender)
	}
	if len(sets) == 0 {
		return false, internal_errors.Validation("Please provide at least one field to update")
	}

	res, err := q.ExecContext(ctx,
		"UPDATE accounts SET "+strings.Join(sets, ", ")+", updated_at = now() WHERE id = $1 AND NOT deleted",
		args...)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return false, conflict
		}
		return false, fmt.Errorf("failed to update profile: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}

	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query account: %w", err)
	}
	if !exists {
		return false, internal_errors.ErrAccountNotFound
	}
	return false, nil
}

// updateOne runs an update that must hit exactly the addressed account.
func (s *Storage) updateOne(ctx context.Context, q Querier, query string, args ...interface{}) error {
	ok, err := s.cas(ctx, q, query, args...)
	if err != nil {
		return err
	}
	if !ok {
		return internal_errors.ErrAccountNotFound
	}
	return nil
}

// cas runs a conditional update and reports whether a row matched.
func (s *Storage) cas(ctx context.Context, q Querier, query string, args ...interface{}) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update account: %w", err)
	}
	return affected(res)
}
