package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
)

// mysqlErrNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlErrNoSuchTable = 1146

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// StoreDirectory reads the legacy site's users table directly.
//
// The table name differs between installations, so it is discovered on first
// use by probing, in order: "<prefix>users" (when a prefix is configured),
// "wp_users", "users", "wpusers". The first table that answers is remembered
// for the lifetime of the StoreDirectory.
type StoreDirectory struct {
	db      *sql.DB
	prefix  string
	timeout time.Duration

	mu    sync.Mutex
	table string
}

// OpenStoreDirectory opens the backing store. An empty DSN yields a store
// that reports every lookup as unavailable.
func OpenStoreDirectory(dsn, tablePrefix string, timeout time.Duration) (*StoreDirectory, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewStoreDirectory(nil, tablePrefix, timeout), nil
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open legacy directory store: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewStoreDirectory(db, tablePrefix, timeout), nil
}

// NewStoreDirectory wraps an open database handle.
func NewStoreDirectory(db *sql.DB, tablePrefix string, timeout time.Duration) *StoreDirectory {
	return &StoreDirectory{db: db, prefix: strings.TrimSpace(tablePrefix), timeout: timeout}
}

// Close releases the underlying connection pool.
func (s *StoreDirectory) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TableCandidates returns the users table names tried by discovery, in order.
func (s *StoreDirectory) TableCandidates() []string {
	candidates := []string{"wp_users", "users", "wpusers"}
	if s.prefix != "" && tablePrefixPattern.MatchString(s.prefix) {
		candidates = append([]string{s.prefix + "users"}, candidates...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (s *StoreDirectory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isNoSuchTable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrNoSuchTable
}

// usersTable returns the discovered users table.
func (s *StoreDirectory) usersTable(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", Unavailable("directory store missing connection config", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != "" {
		return s.table, nil
	}

	for _, candidate := range s.TableCandidates() {
		var one int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM `"+candidate+"` LIMIT 1").Scan(&one)
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			log.Infof("[Identity] Using legacy users table %q", candidate)
			s.table = candidate
			return candidate, nil
		}
		if isNoSuchTable(err) {
			continue
		}
		return "", transportFailure("directory store", err)
	}
	return "", Unavailable("directory store misconfigured: no users table found", nil)
}

func (s *StoreDirectory) queryAccount(ctx context.Context, where string, arg interface{}) (*Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	table, err := s.usersTable(ctx)
	if err != nil {
		return nil, err
	}

	var (
		id    int64
		email string
	)
	query := "SELECT `ID`, `user_email` FROM `" + table + "` WHERE " + where + " LIMIT 1"
	err = s.db.QueryRowContext(ctx, query, arg).Scan(&id, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transportFailure("directory store", err)
	}
	return &Account{CustomerID: id, Email: normalizeEmail(email)}, nil
}

func (s *StoreDirectory) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return s.queryAccount(ctx, "`user_email` = ?", email)
}

func (s *StoreDirectory) LookupByID(ctx context.Context, customerID int64) (*Account, error) {
	if customerID <= 0 {
		return nil, ErrNotFound
	}
	return s.queryAccount(ctx, "`ID` = ?", customerID)
}
