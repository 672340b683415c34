package datacache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlStore keeps one row per key with the namespace and object type as
// their own primary key columns, so invalidation is a plain equality delete.
type sqlStore struct {
	db                 *sql.DB
	table              string
	driverName         string
	prefix             string
	defaultTTL         time.Duration
	getStmt            *sql.Stmt
	upsertStmt         *sql.Stmt
	deleteStmt         *sql.Stmt
	invalidateAllStmt  *sql.Stmt
	invalidateTypeStmt *sql.Stmt
}

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// newSQLStore opens the database, creates the record table when missing and
// prepares every statement up front.
func newSQLStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	if err := validateSQLTableName(cfg.SQLTable); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &sqlStore{
		db:         db,
		table:      cfg.SQLTable,
		driverName: cfg.SQLDriverName,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	var stmt string
	switch s.driverName {
	case "postgres", "pgx":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ns TEXT NOT NULL,
			object_type TEXT NOT NULL,
			object_id TEXT NOT NULL,
			v BYTEA NOT NULL,
			stored_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			PRIMARY KEY (ns, object_type, object_id)
		);`, s.table)
	case "mysql":
		// VARBINARY keeps key comparison byte-exact regardless of collation.
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ns VARBINARY(255) NOT NULL,
			object_type VARBINARY(255) NOT NULL,
			object_id VARBINARY(255) NOT NULL,
			v LONGBLOB NOT NULL,
			stored_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			PRIMARY KEY (ns, object_type, object_id)
		) ENGINE=InnoDB;`, s.table)
	default: // sqlite
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ns TEXT NOT NULL,
			object_type TEXT NOT NULL,
			object_id TEXT NOT NULL,
			v BLOB NOT NULL,
			stored_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (ns, object_type, object_id)
		);`, s.table)
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *sqlStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	var rec Record
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, s.prefix, key.ObjectType, key.ObjectID).Scan(&rec.Value, &rec.StoredAt, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if expiredAt(exp) {
		_ = s.Delete(ctx, key)
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *sqlStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	exp := expiresAtMillis(effectiveTTL(ttl, s.defaultTTL))
	value := rec.Value
	if value == nil {
		value = []byte{}
	}
	_, err := s.upsertStmt.ExecContext(ctx, s.prefix, key.ObjectType, key.ObjectID, value, rec.StoredAt, exp)
	return err
}

func (s *sqlStore) Delete(ctx context.Context, key Key) error {
	_, err := s.deleteStmt.ExecContext(ctx, s.prefix, key.ObjectType, key.ObjectID)
	return err
}

// Invalidate deletes the rows of one object type, or every row in the
// namespace when objectType is empty.
func (s *sqlStore) Invalidate(ctx context.Context, objectType string) error {
	var err error
	if objectType == "" {
		_, err = s.invalidateAllStmt.ExecContext(ctx, s.prefix)
	} else {
		_, err = s.invalidateTypeStmt.ExecContext(ctx, s.prefix, objectType)
	}
	return err
}

// Close releases the prepared statements and the connection pool.
func (s *sqlStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.upsertStmt, s.deleteStmt, s.invalidateAllStmt, s.invalidateTypeStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *sqlStore) upsertSQL() string {
	cols := "ns, object_type, object_id, v, stored_at, expires_at"
	vals := strings.Join([]string{s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6)}, ", ")
	switch s.driverName {
	case "mysql":
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE v = VALUES(v), stored_at = VALUES(stored_at), expires_at = VALUES(expires_at)", s.table, cols, vals)
	default: // postgres, pgx, sqlite
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (ns, object_type, object_id) DO UPDATE SET v = excluded.v, stored_at = excluded.stored_at, expires_at = excluded.expires_at", s.table, cols, vals)
	}
}

func (s *sqlStore) prepareStatements(ctx context.Context) error {
	byKey := fmt.Sprintf("ns = %s AND object_type = %s AND object_id = %s", s.ph(1), s.ph(2), s.ph(3))
	var err error
	if s.getStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("SELECT v, stored_at, expires_at FROM %s WHERE %s", s.table, byKey)); err != nil {
		return err
	}
	if s.upsertStmt, err = s.db.PrepareContext(ctx, s.upsertSQL()); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.table, byKey)); err != nil {
		return err
	}
	if s.invalidateAllStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE ns = %s", s.table, s.ph(1))); err != nil {
		return err
	}
	if s.invalidateTypeStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE ns = %s AND object_type = %s", s.table, s.ph(1), s.ph(2))); err != nil {
		return err
	}
	return nil
}

func (s *sqlStore) ph(i int) string {
	if s.driverName == "postgres" || s.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
