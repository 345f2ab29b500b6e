package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/cshub/core/user"
)

const uniqueViolation = "23505"

// repository implements user.Repository on top of Postgres.
// exec is either the *sqlx.DB itself or the *sqlx.Tx of the running transaction.
type repository struct {
	db   *sqlx.DB
	exec sqlx.ExtContext
}

var _ user.Repository = (*repository)(nil)

func NewRepository(db *sqlx.DB) *repository {
	return &repository{db: db, exec: db}
}

func (repo *repository) inTx() bool {
	_, ok := repo.exec.(*sqlx.Tx)
	return ok
}

// Transact runs fn in a transaction. Nested calls join the running transaction.
func (repo *repository) Transact(ctx context.Context, fn func(repo user.Repository) error) (err error) {
	if repo.inTx() {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&repository{db: repo.db, exec: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *repository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, repo.exec, dest, repo.exec.Rebind(query), args...)
}

func (repo *repository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, repo.exec, dest, repo.exec.Rebind(query), args...)
}

func (repo *repository) execute(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertReturning runs an `INSERT ... ON CONFLICT DO NOTHING RETURNING ...` query.
// inserted is false when the conflicting row already existed.
func (repo *repository) insertReturning(ctx context.Context, dest interface{}, query string, args ...interface{}) (inserted bool, err error) {
	err = repo.exec.QueryRowxContext(ctx, repo.exec.Rebind(query), args...).Scan(dest)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// trapUniqueErr maps unique violations of the users email to user.ErrEmailExists.
func trapUniqueErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "email") {
		return user.ErrEmailExists
	}
	return err
}

// escapeLike escapes the LIKE wildcards of s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
