package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, name, password_hash, role, permissions, is_active, email_verified, mfa_enabled,
	failed_login_attempts, locked_until, last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at`

// AccountStore is an [account.Repository] on the accounts table. Emails
// are stored normalized; lookups normalize their argument.
type AccountStore struct {
	db DB
}

var _ account.Repository = (*AccountStore)(nil)

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, account.NormalizeEmail(email))
	return s.scanOne(row, "get account by email")
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return s.scanOne(row, "get account by id")
}

func (s *AccountStore) Create(ctx context.Context, a account.Account) error {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, account.NormalizeEmail(a.Email), a.Name, a.PasswordHash, a.Role.String(), perms,
		a.IsActive, a.EmailVerified, a.MFAEnabled, a.FailedLoginAttempts,
		nullTime(a.LockedUntil), nullTime(a.LastLoginAt), a.ResetTokenHash, nullTime(a.ResetTokenExpiresAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return account.ErrExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Update writes only the columns set in patch and returns the stored row.
// An empty patch is a read.
func (s *AccountStore) Update(ctx context.Context, id string, patch account.Patch) (account.Account, error) {
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)
	return s.scanOne(s.db.QueryRow(ctx, query, args...), "update account")
}

func patchAssignments(p account.Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addTime := func(column string, value *time.Time) {
		if value != nil {
			add(column, nullTime(*value))
		}
	}

	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
	}
	if p.FailedLoginAttempts != nil {
		add("failed_login_attempts", *p.FailedLoginAttempts)
	}
	addTime("locked_until", p.LockedUntil)
	addTime("last_login_at", p.LastLoginAt)
	if p.ResetTokenHash != nil {
		add("reset_token_hash", *p.ResetTokenHash)
	}
	addTime("reset_token_expires_at", p.ResetTokenExpiresAt)
	if p.EmailVerified != nil {
		add("email_verified", *p.EmailVerified)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	addTime("updated_at", p.UpdatedAt)
	return sets, args
}

func (s *AccountStore) scanOne(row pgx.Row, op string) (account.Account, error) {
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var (
		a                                    account.Account
		role                                 string
		lockedUntil, lastLogin, resetExpires pgtype.Timestamptz
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &role, &a.Permissions,
		&a.IsActive, &a.EmailVerified, &a.MFAEnabled, &a.FailedLoginAttempts,
		&lockedUntil, &lastLogin, &a.ResetTokenHash, &resetExpires, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return account.Account{}, err
	}
	r, err := permission.ParseRole(role)
	if err != nil {
		return account.Account{}, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.Role = r
	a.LockedUntil = fromNull(lockedUntil)
	a.LastLoginAt = fromNull(lastLogin)
	a.ResetTokenExpiresAt = fromNull(resetExpires)
	return a, nil
}
