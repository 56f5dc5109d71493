package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. It
// doubles as a result sink that records every run that found a triangle.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, exchange, symbols, prices, inverted,
	profit, ticker_count, exchange_time, detected_at`

// Name identifies the sink in logs.
func (s *OpportunityStore) Name() string { return "postgres" }

// Publish records the detection. Runs without an opportunity are skipped.
func (s *OpportunityStore) Publish(ctx context.Context, d domain.Detection) error {
	if !d.Found() {
		return nil
	}
	return s.Insert(ctx, d)
}

// Insert stores a detection that carries an opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, d domain.Detection) error {
	if d.Opportunity == nil {
		return fmt.Errorf("postgres: insert opportunity %s: no opportunity", d.ID)
	}
	const query = `
		INSERT INTO opportunities (
			id, exchange, symbols, prices, inverted,
			profit, ticker_count, exchange_time, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	inverted := make([]bool, len(d.Opportunity.Legs))
	for i, leg := range d.Opportunity.Legs {
		inverted[i] = leg.Inverted
	}

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.Exchange, d.Opportunity.Symbols(), d.Opportunity.Prices(), inverted,
		d.Profit, d.TickerCount, d.ExchangeTime, d.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", d.ID, err)
	}
	return nil
}

// ListRecent returns detections newest first, filtered by opts.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.OpportunityRow, error) {
	query, args := listQuery(opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.OpportunityRow
	for rows.Next() {
		row, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return out, nil
}

// Best returns the most profitable detection on exchange since the given
// time. It returns domain.ErrNotFound when there is none.
func (s *OpportunityStore) Best(ctx context.Context, exchange string, since time.Time) (domain.OpportunityRow, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities
		WHERE exchange = $1 AND detected_at >= $2
		ORDER BY profit DESC, detected_at ASC
		LIMIT 1`

	row, err := scanOpportunity(s.pool.QueryRow(ctx, query, exchange, since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OpportunityRow{}, domain.ErrNotFound
		}
		return domain.OpportunityRow{}, err
	}
	return row, nil
}

// listQuery builds the filtered SELECT for ListRecent.
func listQuery(opts domain.ListOpts) (string, []any) {
	var (
		where []string
		args  []any
	)
	if opts.Exchange != "" {
		args = append(args, opts.Exchange)
		where = append(where, fmt.Sprintf("exchange = $%d", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("detected_at >= $%d", len(args)))
	}

	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY detected_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func scanOpportunity(row pgx.Row) (domain.OpportunityRow, error) {
	var r domain.OpportunityRow
	if err := row.Scan(
		&r.ID, &r.Exchange, &r.Symbols, &r.Prices, &r.Inverted,
		&r.Profit, &r.TickerCount, &r.ExchangeTime, &r.DetectedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("postgres: scan opportunity: %w", err)
	}
	return r, nil
}

// Compile-time interface checks.
var (
	_ domain.OpportunityStore = (*OpportunityStore)(nil)
	_ domain.ResultSink       = (*OpportunityStore)(nil)
)
