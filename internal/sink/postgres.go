package sink

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

// copier is the part of a pgx connection or pool the sink needs.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresConfig configures the COPY target.
type PostgresConfig struct {
	DSN string
	// Table may be schema-qualified, e.g. "public.orders".
	Table string
	// MaxConns caps the pool. Zero keeps the pgx default.
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Postgres copies rows into a table with the binary COPY protocol. Column
// names match the decode schema; dropped columns are not copied.
type Postgres struct {
	db      copier
	pool    *pgxpool.Pool
	table   pgx.Identifier
	columns []string
	slots   []int
	logger  *zap.Logger

	copied int64
}

// NewPostgres connects a pool to cfg.DSN.
func NewPostgres(ctx context.Context, cfg PostgresConfig, cols []schema.Column, logger *zap.Logger) (*Postgres, error) {
	if cfg.Table == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres sink requires a table")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach postgres")
	}

	s := newPostgres(pool, cfg.Table, cols, logger)
	s.pool = pool
	return s, nil
}

func newPostgres(db copier, table string, cols []schema.Column, logger *zap.Logger) *Postgres {
	s := &Postgres{
		db:     db,
		table:  pgx.Identifier(strings.Split(table, ".")),
		logger: logger,
	}
	for i, c := range cols {
		if c.Dropped {
			continue
		}
		s.columns = append(s.columns, c.Name)
		s.slots = append(s.slots, i)
	}
	return s
}

func (s *Postgres) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		vals := make([]any, len(s.slots))
		for j, slot := range s.slots {
			if r.Row.Nulls[slot] {
				continue
			}
			vals[j] = pgValue(r.Row.Values[slot])
		}
		rows[i] = vals
	}

	n, err := s.db.CopyFrom(ctx, s.table, s.columns, pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "copy into postgres failed").
			WithDetail("table", s.table.Sanitize()).
			WithDetail("rows", len(rows))
	}
	s.copied += n
	s.logger.Debug("rows copied",
		zap.String("table", s.table.Sanitize()),
		zap.Int64("rows", n))
	return nil
}

// pgValue converts native values to the pgtype the column codec expects.
func pgValue(v any) any {
	switch x := v.(type) {
	case time.Duration:
		return pgtype.Time{Microseconds: x.Microseconds(), Valid: true}
	case valueparser.Interval:
		return pgtype.Interval{Months: x.Months, Days: x.Days, Microseconds: x.Microseconds, Valid: true}
	case decimal.Decimal:
		return pgtype.Numeric{Int: x.Coefficient(), Exp: x.Exponent(), Valid: true}
	case uuid.UUID:
		return pgtype.UUID{Bytes: x, Valid: true}
	default:
		return v
	}
}

// Copied returns the number of rows copied so far.
func (s *Postgres) Copied() int64 { return s.copied }

func (s *Postgres) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
