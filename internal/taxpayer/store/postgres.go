package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"taxregistry/internal/taxpayer/models"
	txcontext "taxregistry/pkg/platform/tx"
)

const pgForeignKeyViolation = "23503"

// PostgresStore persists taxpayers in PostgreSQL. Tids come from the
// taxpayer_tid_seq sequence, which never hands a value out twice even when the
// inserting transaction rolls back.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, p models.Profile) (*models.TaxPayer, error) {
	query := `
		INSERT INTO taxpayers (first_name, last_name, address)
		VALUES ($1, $2, $3)
		RETURNING tid
	`
	var tid int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, p.FirstName, p.LastName, p.Address).Scan(&tid); err != nil {
		return nil, fmt.Errorf("create taxpayer: %w", err)
	}
	return models.NewTaxPayer(models.TID(tid), p), nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, tid models.TID, p models.Profile) error {
	query := `
		UPDATE taxpayers
		SET first_name = $2, last_name = $3, address = $4
		WHERE tid = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, int64(tid), p.FirstName, p.LastName, p.Address)
	if err != nil {
		return fmt.Errorf("update taxpayer: %w", err)
	}
	return requireRow(res, "update taxpayer")
}

// Delete removes the taxpayer; its capital gains go with it via ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, tid models.TID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM taxpayers WHERE tid = $1`, int64(tid))
	if err != nil {
		return fmt.Errorf("delete taxpayer: %w", err)
	}
	return requireRow(res, "delete taxpayer")
}

func (s *PostgresStore) AppendCapitalGain(ctx context.Context, tid models.TID, g models.CapitalGain) error {
	query := `
		INSERT INTO capital_gains (tid, date_s, date_nanos, amount)
		SELECT tid, $2, $3, $4 FROM taxpayers WHERE tid = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, int64(tid), g.Date.Unix(), int32(g.Date.Nanosecond()), g.Amount)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("append capital gain: %w", err)
	}
	return requireRow(res, "append capital gain")
}

func (s *PostgresStore) FindByID(ctx context.Context, tid models.TID) (*models.TaxPayer, error) {
	var found *models.TaxPayer
	err := s.read(ctx, func(db dbExecutor) error {
		row := db.QueryRowContext(ctx,
			`SELECT tid, first_name, last_name, address FROM taxpayers WHERE tid = $1`, int64(tid))
		tp, err := scanTaxPayer(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("find taxpayer: %w", err)
		}
		gains, err := s.loadGains(ctx, db, `WHERE tid = $1`, int64(tid))
		if err != nil {
			return err
		}
		tp.CapitalGains = gains[tp.TID]
		found = tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.TaxPayer, error) {
	var out []*models.TaxPayer
	err := s.read(ctx, func(db dbExecutor) error {
		rows, err := db.QueryContext(ctx,
			`SELECT tid, first_name, last_name, address FROM taxpayers ORDER BY tid`)
		if err != nil {
			return fmt.Errorf("list taxpayers: %w", err)
		}
		defer rows.Close()

		out = make([]*models.TaxPayer, 0)
		for rows.Next() {
			tp, err := scanTaxPayer(rows)
			if err != nil {
				return fmt.Errorf("scan taxpayer: %w", err)
			}
			out = append(out, tp)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list taxpayers: %w", err)
		}

		gains, err := s.loadGains(ctx, db, "")
		if err != nil {
			return err
		}
		for _, tp := range out {
			tp.CapitalGains = gains[tp.TID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// read runs fn against the ambient transaction, or a read-only repeatable-read
// snapshot so a taxpayer and its gains are loaded consistently.
func (s *PostgresStore) read(ctx context.Context, fn func(db dbExecutor) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) loadGains(ctx context.Context, db dbExecutor, where string, args ...any) (map[models.TID][]models.CapitalGain, error) {
	query := `SELECT tid, date_s, date_nanos, amount FROM capital_gains ` + where + ` ORDER BY tid, position`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load capital gains: %w", err)
	}
	defer rows.Close()

	gains := make(map[models.TID][]models.CapitalGain)
	for rows.Next() {
		var (
			tid    int64
			sec    int64
			nsec   int32
			amount float64
		)
		if err := rows.Scan(&tid, &sec, &nsec, &amount); err != nil {
			return nil, fmt.Errorf("scan capital gain: %w", err)
		}
		key := models.TID(tid)
		gains[key] = append(gains[key], models.CapitalGain{Date: time.Unix(sec, int64(nsec)).UTC(), Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load capital gains: %w", err)
	}
	return gains, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaxPayer(row rowScanner) (*models.TaxPayer, error) {
	var (
		tid int64
		p   models.Profile
	)
	if err := row.Scan(&tid, &p.FirstName, &p.LastName, &p.Address); err != nil {
		return nil, err
	}
	return models.NewTaxPayer(models.TID(tid), p), nil
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
