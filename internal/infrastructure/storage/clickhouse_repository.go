package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
)

// ClickHouseRepository implements both EventPersistence and SwapPersistence interfaces
// using ClickHouse as the backend database. It provides durable, analytical storage for
// the ledger event audit log and for individual swaps.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	// Ensure tables exist
	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

// Ensure ClickHouseRepository implements both required interfaces
var _ repository.EventPersistence = (*ClickHouseRepository)(nil)
var _ repository.SwapPersistence = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	err := conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS swap_events (
			id String,
			token String,
			amount UInt64,
			volume UInt64,
			side String,
			who String,
			timestamp DateTime,
			processed_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		ORDER BY (who, timestamp, id)
	`)
	if err != nil {
		return err
	}

	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS ledger_events (
			id String,
			kind LowCardinality(String),
			owner String,
			amount UInt64,
			epoch UInt64,
			timestamp DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (timestamp, id)
	`)
}

// SaveEvent appends a ledger event to the audit log
func (r *ClickHouseRepository) SaveEvent(ctx context.Context, event *model.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (
			id, kind, owner, amount, epoch, timestamp
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, false,
		event.ID,
		string(event.Kind),
		event.Owner,
		event.Amount,
		event.Epoch,
		event.Timestamp,
	)
}

// GetEventsSince retrieves ledger events at or after since, oldest first
func (r *ClickHouseRepository) GetEventsSince(ctx context.Context, since time.Time) ([]*model.LedgerEvent, error) {
	query := `
		SELECT id, kind, owner, amount, epoch, timestamp
		FROM ledger_events
		WHERE timestamp >= ?
		ORDER BY timestamp, id
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.LedgerEvent
	for rows.Next() {
		var (
			event model.LedgerEvent
			kind  string
		)
		if err := rows.Scan(
			&event.ID,
			&kind,
			&event.Owner,
			&event.Amount,
			&event.Epoch,
			&event.Timestamp,
		); err != nil {
			return nil, err
		}
		event.Kind = model.EventKind(kind)
		results = append(results, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// SaveSwap saves a swap to ClickHouse
func (r *ClickHouseRepository) SaveSwap(ctx context.Context, swap *model.Swap) error {
	query := `
		INSERT INTO swap_events (
			id, token, amount, volume, side, who, timestamp
		) VALUES (
			?, ?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, false,
		swap.ID,
		swap.Token,
		swap.Amount,
		swap.Volume,
		swap.Side,
		swap.Who,
		swap.Timestamp,
	)
}

// GetSwapsSince retrieves all swaps after the given unix timestamp
func (r *ClickHouseRepository) GetSwapsSince(ctx context.Context, since int64) ([]*model.Swap, error) {
	query := `
		SELECT id, token, amount, volume, side, who, timestamp
		FROM swap_events
		WHERE timestamp >= fromUnixTimestamp(?)
		ORDER BY timestamp
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Swap
	for rows.Next() {
		swap := new(model.Swap)
		if err := rows.Scan(
			&swap.ID,
			&swap.Token,
			&swap.Amount,
			&swap.Volume,
			&swap.Side,
			&swap.Who,
			&swap.Timestamp,
		); err != nil {
			return nil, err
		}
		results = append(results, swap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Close closes the connection pool
func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
