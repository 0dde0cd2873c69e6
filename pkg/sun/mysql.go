package sun

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// MySQLSun stores a collection's records as JSON documents in a shared
// two-column-key table: (collection, record_key) -> doc. The table is
// created on first use if it does not exist.
type MySQLSun struct {
	db        *sql.DB
	table     string
	name      string
	schema    *multiverse.LocalSchema
	batchSize int
	log       *zap.Logger
}

// NewMySQLSun creates a MySQL-backed collection, verifying connectivity and
// ensuring the document table exists.
func NewMySQLSun(name string, schema *multiverse.LocalSchema, cfg multiverse.MySQLSunConfig, batchSize int, log *zap.Logger) (*MySQLSun, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	table := cfg.Table
	if table == "" {
		table = "multiverse_records"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	createStmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		collection VARCHAR(128) NOT NULL,
		record_key VARCHAR(255) NOT NULL,
		doc JSON NOT NULL,
		PRIMARY KEY (collection, record_key)
	)`, table)
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure table %s: %w", table, err)
	}

	return &MySQLSun{
		db:        db,
		table:     table,
		name:      name,
		schema:    schema,
		batchSize: batchSize,
		log:       log,
	}, nil
}

func (s *MySQLSun) Name() string                    { return s.name }
func (s *MySQLSun) Schema() *multiverse.LocalSchema { return s.schema }
func (s *MySQLSun) BatchSize() int                  { return s.batchSize }
func (s *MySQLSun) IsAsync() bool                   { return true }

func (s *MySQLSun) Get(ctx context.Context, key string) (multiverse.Record, bool, error) {
	query := fmt.Sprintf("SELECT doc FROM %s WHERE collection = ? AND record_key = ?", s.table)
	var data []byte
	err := s.db.QueryRowContext(ctx, query, s.name, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var rec multiverse.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *MySQLSun) Set(ctx context.Context, key string, rec multiverse.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (collection, record_key, doc) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE doc = VALUES(doc)",
		s.table)
	if _, err := s.db.ExecContext(ctx, query, s.name, key, data); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *MySQLSun) Has(ctx context.Context, key string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE collection = ? AND record_key = ?", s.table)
	var one int
	err := s.db.QueryRowContext(ctx, query, s.name, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return true, nil
}

func (s *MySQLSun) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE collection = ? AND record_key = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, s.name, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *MySQLSun) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection = ?", s.table)
	var count int
	if err := s.db.QueryRowContext(ctx, query, s.name).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", s.name, err)
	}
	return count, nil
}

func (s *MySQLSun) GetMany(ctx context.Context, keys []string) (map[string]multiverse.Record, error) {
	if len(keys) == 0 {
		return map[string]multiverse.Record{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := fmt.Sprintf("SELECT record_key, doc FROM %s WHERE collection = ? AND record_key IN (%s)",
		s.table, placeholders)

	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, s.name)
	for _, key := range keys {
		args = append(args, key)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %d keys: %w", len(keys), err)
	}
	defer rows.Close()

	out := make(map[string]multiverse.Record, len(keys))
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var rec multiverse.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
		}
		out[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func (s *MySQLSun) SetMany(ctx context.Context, recs map[string]multiverse.Record) error {
	if len(recs) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (collection, record_key, doc) VALUES ", s.table)
	args := make([]interface{}, 0, len(recs)*3)
	first := true
	for key, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", key, err)
		}
		if !first {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, s.name, key, data)
		first = false
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE doc = VALUES(doc)")

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to batch set %d records: %w", len(recs), err)
	}
	s.log.Debug("mysql batch set", zap.String("collection", s.name), zap.Int("records", len(recs)))
	return nil
}

func (s *MySQLSun) Find(ctx context.Context, match func(rec multiverse.Record) bool) ([]multiverse.KeyedRecord, error) {
	cursor, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []multiverse.KeyedRecord
	for {
		batch, done, err := cursor.Next(ctx, 256)
		if err != nil {
			return nil, err
		}
		for _, kr := range batch {
			if match(kr.Record) {
				out = append(out, kr)
			}
		}
		if done {
			return out, nil
		}
	}
}

// Mutate is copy-on-write over a get/set pair with no row lock, matching
// the single-writer assumption.
func (s *MySQLSun) Mutate(ctx context.Context, key string, fn multiverse.MutateFunc) (multiverse.Record, error) {
	stored, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	result, action := fn(multiverse.CloneRecord(stored), found)
	switch action {
	case multiverse.MutateSet:
		if result == nil {
			return nil, fmt.Errorf("mutate of %q returned MutateSet with a nil record", key)
		}
		if err := s.Set(ctx, key, result); err != nil {
			return nil, err
		}
		return result, nil
	case multiverse.MutateDelete:
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	case multiverse.MutateNoop:
		return stored, nil
	default:
		return nil, fmt.Errorf("mutate of %q returned unknown action %d", key, action)
	}
}

// Values opens a keyset-paginated cursor ordered by record key.
func (s *MySQLSun) Values(ctx context.Context) (multiverse.Cursor, error) {
	return &mysqlCursor{sun: s}, nil
}

// Close releases the connection pool.
func (s *MySQLSun) Close() error {
	return s.db.Close()
}

type mysqlCursor struct {
	sun     *MySQLSun
	lastKey string
	done    bool
}

func (c *mysqlCursor) Next(ctx context.Context, batchSize int) ([]multiverse.KeyedRecord, bool, error) {
	if c.done {
		return nil, true, nil
	}
	if batchSize <= 0 {
		batchSize = multiverse.DefaultBatchSize
	}

	query := fmt.Sprintf(
		"SELECT record_key, doc FROM %s WHERE collection = ? AND record_key > ? ORDER BY record_key LIMIT ?",
		c.sun.table)
	rows, err := c.sun.db.QueryContext(ctx, query, c.sun.name, c.lastKey, batchSize)
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan collection %s: %w", c.sun.name, err)
	}
	defer rows.Close()

	out := make([]multiverse.KeyedRecord, 0, batchSize)
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, false, fmt.Errorf("failed to scan row: %w", err)
		}
		var rec multiverse.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, false, fmt.Errorf("failed to decode record %s: %w", key, err)
		}
		out = append(out, multiverse.KeyedRecord{Key: key, Record: rec})
		c.lastKey = key
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(out) < batchSize {
		c.done = true
	}
	return out, c.done, nil
}

func (c *mysqlCursor) Close() error {
	c.done = true
	return nil
}

// mysqlFactory builds MySQL suns from configuration.
type mysqlFactory struct{}

func (f *mysqlFactory) Type() string { return "mysql" }

func (f *mysqlFactory) Validate(cfg multiverse.SunConfig) error {
	if cfg.Type != "mysql" {
		return fmt.Errorf("invalid type for mysql factory: %s", cfg.Type)
	}
	if cfg.MySQL.Host == "" {
		return fmt.Errorf("host is required")
	}
	if cfg.MySQL.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

func (f *mysqlFactory) Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error) {
	return NewMySQLSun(cfg.Collection, schema, cfg.MySQL, cfg.BatchSize, deps.logger())
}

func init() {
	RegisterFactory(&mysqlFactory{})
}
