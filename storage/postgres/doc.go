// Package postgres provides pgx-backed implementations of the account and
// refresh record repositories, plus the embedded goose migrations that
// create their tables.
//
// Both stores accept any [DB], so they run on a *pgxpool.Pool in
// production and on a pgxmock pool in tests.
//
// RefreshStore.Claim is a single conditional UPDATE ... RETURNING. When it
// matches no row, a follow-up read classifies the rejection. That read
// never changes state, so the one-winner guarantee rests on the UPDATE.
package postgres
