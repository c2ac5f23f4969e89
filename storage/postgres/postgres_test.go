package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/permission"
	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	refreshCols = []string{"token_id", "user_id", "session_id", "hashed_token", "expires_at", "is_revoked",
		"device_id", "ip_address", "user_agent", "created_at", "last_used_at", "parent_token_id", "rotated_at"}
	accountCols = []string{"id", "email", "name", "password_hash", "role", "permissions", "is_active", "email_verified",
		"mfa_enabled", "failed_login_attempts", "locked_until", "last_login_at", "reset_token_hash",
		"reset_token_expires_at", "created_at", "updated_at"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func recordRow(id string, now time.Time, revoked bool, rotatedAt any) *pgxmock.Rows {
	return pgxmock.NewRows(refreshCols).AddRow(
		id, "u1", "s1", "digest-"+id, now.Add(time.Hour), revoked,
		"dev", "203.0.113.7", "agent", now, now, "", rotatedAt,
	)
}

func TestRefreshStoreGet(t *testing.T) {
	mock := newMock(t)
	store := NewRefreshStore(mock)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
		WithArgs("j1").
		WillReturnRows(recordRow("j1", now, false, nil))

	rec, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "digest-j1", rec.HashedToken)
	assert.True(t, rec.RotatedAt.IsZero())

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestRefreshStorePut(t *testing.T) {
	mock := newMock(t)
	store := NewRefreshStore(mock)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := refresh.Record{
		TokenID: "j1", UserID: "u1", SessionID: "s1", HashedToken: "digest",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, LastUsedAt: now, ParentTokenID: "j0",
	}
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs("j1", "u1", "s1", "digest", now.Add(time.Hour), false, "", "", "", now, now, "j0", nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), rec))

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.Put(context.Background(), rec)
	assert.ErrorContains(t, err, "put refresh record")
}

func TestRefreshStoreClaim(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	req := refresh.ClaimRequest{TokenID: "j1", HashedToken: "digest-j1", Now: now.Add(time.Minute), Rotate: true}

	t.Run("success", func(t *testing.T) {
		mock := newMock(t)
		store := NewRefreshStore(mock)

		mock.ExpectQuery("UPDATE refresh_tokens SET").
			WithArgs("j1", "digest-j1", req.Now, true).
			WillReturnRows(recordRow("j1", now, true, req.Now))

		rec, err := store.Claim(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, rec.Rotated())
	})

	t.Run("replayed after rotation", func(t *testing.T) {
		mock := newMock(t)
		store := NewRefreshStore(mock)

		mock.ExpectQuery("UPDATE refresh_tokens SET").
			WithArgs("j1", "digest-j1", req.Now, true).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
			WithArgs("j1").
			WillReturnRows(recordRow("j1", now, true, now))

		rec, err := store.Claim(context.Background(), req)
		assert.ErrorIs(t, err, refresh.ErrRevoked)
		assert.True(t, rec.Rotated())
	})

	t.Run("hash mismatch", func(t *testing.T) {
		mock := newMock(t)
		store := NewRefreshStore(mock)
		forged := req
		forged.HashedToken = "other"

		mock.ExpectQuery("UPDATE refresh_tokens SET").
			WithArgs("j1", "other", req.Now, true).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
			WithArgs("j1").
			WillReturnRows(recordRow("j1", now, false, nil))

		_, err := store.Claim(context.Background(), forged)
		assert.ErrorIs(t, err, refresh.ErrHashMismatch)
	})

	t.Run("expired", func(t *testing.T) {
		mock := newMock(t)
		store := NewRefreshStore(mock)
		late := req
		late.Now = now.Add(2 * time.Hour)

		mock.ExpectQuery("UPDATE refresh_tokens SET").
			WithArgs("j1", "digest-j1", late.Now, true).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
			WithArgs("j1").
			WillReturnRows(recordRow("j1", now, false, nil))

		_, err := store.Claim(context.Background(), late)
		assert.ErrorIs(t, err, refresh.ErrExpired)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		store := NewRefreshStore(mock)

		mock.ExpectQuery("UPDATE refresh_tokens SET").
			WithArgs("j1", "digest-j1", req.Now, true).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_id").
			WithArgs("j1").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.Claim(context.Background(), req)
		assert.ErrorIs(t, err, refresh.ErrNotFound)
	})
}

func TestRefreshStoreRevoke(t *testing.T) {
	mock := newMock(t)
	store := NewRefreshStore(mock)
	ctx := context.Background()

	mock.ExpectExec("UPDATE refresh_tokens SET is_revoked = TRUE").
		WithArgs("j1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE refresh_tokens SET is_revoked = TRUE").
		WithArgs("j1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := store.Revoke(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Revoke(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRefreshStoreListByUser(t *testing.T) {
	mock := newMock(t)
	store := NewRefreshStore(mock)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(refreshCols).
		AddRow("j1", "u1", "s1", "d1", now.Add(time.Hour), false, "", "", "", now, now, "", nil).
		AddRow("j2", "u1", "s2", "d2", now.Add(time.Hour), true, "", "", "", now, now, "j1", now)
	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE user_id").
		WithArgs("u1").
		WillReturnRows(rows)

	list, err := store.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "j1", list[1].ParentTokenID)
	assert.True(t, list[1].Rotated())
}

func accountRow(now time.Time, role string) *pgxmock.Rows {
	return pgxmock.NewRows(accountCols).AddRow(
		"u1", "a@x.com", "Ann", "$argon2id$digest", role, []string{"reports:read"}, true, true, false,
		2, nil, now, "", nil, now, now,
	)
}

func TestAccountStoreGetByEmail(t *testing.T) {
	mock := newMock(t)
	store := NewAccountStore(mock)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email").
		WithArgs("a@x.com").
		WillReturnRows(accountRow(now, "sales"))

	a, err := store.GetByEmail(ctx, " A@X.com ")
	require.NoError(t, err)
	assert.Equal(t, permission.RoleSales, a.Role)
	assert.Equal(t, 2, a.FailedLoginAttempts)
	assert.True(t, a.LockedUntil.IsZero())
	assert.True(t, a.LastLoginAt.Equal(now))

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email").
		WithArgs("nobody@x.com").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs("u1").
		WillReturnRows(accountRow(now, "overlord"))

	_, err = store.GetByID(ctx, "u1")
	assert.ErrorContains(t, err, "unknown role")
}

func TestAccountStoreCreate(t *testing.T) {
	mock := newMock(t)
	store := NewAccountStore(mock)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a := account.Account{
		ID: "u1", Email: "a@x.com", PasswordHash: "digest", Role: permission.RoleManager,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("u1", "a@x.com", "", "digest", "manager", []string{}, true, false, false, 0,
			nil, nil, "", nil, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Create(context.Background(), a))

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, store.Create(context.Background(), a), account.ErrExists)
}

func TestAccountStoreUpdate(t *testing.T) {
	mock := newMock(t)
	store := NewAccountStore(mock)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	zero := 0
	var never time.Time
	mock.ExpectQuery(`UPDATE accounts SET failed_login_attempts = \$1, locked_until = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(0, nil, now, "u1").
		WillReturnRows(accountRow(now, "customer"))

	a, err := store.Update(ctx, "u1", account.Patch{FailedLoginAttempts: &zero, LockedUntil: &never, UpdatedAt: &now})
	require.NoError(t, err)
	assert.Equal(t, permission.RoleCustomer, a.Role)

	mock.ExpectQuery("UPDATE accounts SET").
		WithArgs(now, "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Update(ctx, "missing", account.Patch{LastLoginAt: &now})
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestPatchAssignmentsEmpty(t *testing.T) {
	sets, args := patchAssignments(account.Patch{})
	assert.Empty(t, sets)
	assert.Empty(t, args)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_create_accounts.sql", entries[0].Name())
}
