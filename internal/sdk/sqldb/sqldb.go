// Package sqldb provides database operations for the accounts service.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/config"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/models"
)

// Postgres error codes.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	uniqueViolation     = "23505"
	undefinedTable      = "42P01"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
)

var (
	ErrDBNotFound          = sql.ErrNoRows
	ErrDBDuplicatedEntry   = errors.New("duplicated entry")
	ErrUndefinedTable      = errors.New("undefined table")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrNotNullViolation    = errors.New("not null violation")
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Service represents a service that interacts with the database. Every
// mutation touches a single user row; there are no multi-row transactions.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	// User lookups
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	GetUserByIdentity(ctx context.Context, identifier string) (models.User, error)
	UserExists(ctx context.Context, username, email string) (bool, error)

	// User mutations
	CreateUser(ctx context.Context, user models.NewUser) (models.User, error)
	UpdateUserPassword(ctx context.Context, userID string, newPassword []byte) error
	UpdateUserDetails(ctx context.Context, userID, fullName, email string) (models.User, error)
	UpdateUserAvatar(ctx context.Context, userID, avatarURL string) (models.User, error)
	UpdateUserCoverImage(ctx context.Context, userID, coverImageURL string) (models.User, error)

	// Refresh token state. The user row holds at most one valid refresh
	// token; these updates never touch any other column.
	SetRefreshToken(ctx context.Context, userID, token string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, userID, current, next string) error

	// Reporting
	GetWatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

type service struct {
	db     *sql.DB
	dbName string
}

// New opens a connection pool and applies pending migrations.
func New(cfg config.Database) (Service, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := applyMigrations(db, cfg.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return &service{db: db, dbName: cfg.Database}, nil
}

func applyMigrations(db *sql.DB, schema string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: schema + "_schema_migrations"})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Printf("Disconnected from database: %s", s.dbName)
	return s.db.Close()
}

// ---------------------------------------------
// User lookups
// ---------------------------------------------

const userColumns = `
	id::text,
	username,
	email,
	full_name,
	password,
	avatar_url,
	cover_image_url,
	refresh_token,
	created_at,
	updated_at`

// GetUserByID retrieves a user by their ID.
func (s *service) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM accounts.users
		WHERE id = $1
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("selecting user: %w", err)
	}

	return user, nil
}

// GetUserByIdentity retrieves a user whose username or email matches the
// identifier. Both columns are stored lowercased, so the comparison is
// case-insensitive.
func (s *service) GetUserByIdentity(ctx context.Context, identifier string) (models.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM accounts.users
		WHERE username = lower($1) OR email = lower($1)
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("selecting user by identity: %w", err)
	}

	return user, nil
}

// UserExists reports whether any user already holds the username or email.
func (s *service) UserExists(ctx context.Context, username, email string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM accounts.users
			WHERE username = lower($1) OR email = lower($2)
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}

	return exists, nil
}

// ---------------------------------------------
// User mutations
// ---------------------------------------------

// CreateUser inserts a new user into the database.
func (s *service) CreateUser(ctx context.Context, newUser models.NewUser) (models.User, error) {
	const query = `
		INSERT INTO accounts.users (username, email, full_name, password, avatar_url, cover_image_url)
		VALUES (lower($1), lower($2), $3, $4, $5, $6)
		RETURNING` + userColumns + `
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		newUser.Username,
		newUser.Email,
		newUser.FullName,
		newUser.Password,
		newUser.AvatarURL,
		newUser.CoverImageURL,
	))

	if err != nil {
		if isPgError(err, uniqueViolation) {
			return models.User{}, ErrDBDuplicatedEntry
		}
		return models.User{}, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

// UpdateUserPassword updates a user's password hash.
func (s *service) UpdateUserPassword(ctx context.Context, userID string, newPassword []byte) error {
	const query = `
		UPDATE accounts.users
		SET password = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	return s.execExpectingRow(ctx, query, newPassword, userID)
}

// UpdateUserDetails sets the mutable profile fields and returns the updated
// record.
func (s *service) UpdateUserDetails(ctx context.Context, userID, fullName, email string) (models.User, error) {
	const query = `
		UPDATE accounts.users
		SET full_name = $1,
		    email = lower($2),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING` + userColumns + `
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, fullName, email, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		if isPgError(err, uniqueViolation) {
			return models.User{}, ErrDBDuplicatedEntry
		}
		return models.User{}, fmt.Errorf("updating user details: %w", err)
	}

	return user, nil
}

// UpdateUserAvatar replaces the avatar reference and returns the updated
// record.
func (s *service) UpdateUserAvatar(ctx context.Context, userID, avatarURL string) (models.User, error) {
	const query = `
		UPDATE accounts.users
		SET avatar_url = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING` + userColumns + `
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, avatarURL, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("updating user avatar: %w", err)
	}

	return user, nil
}

// UpdateUserCoverImage replaces the cover image reference and returns the
// updated record.
func (s *service) UpdateUserCoverImage(ctx context.Context, userID, coverImageURL string) (models.User, error) {
	const query = `
		UPDATE accounts.users
		SET cover_image_url = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING` + userColumns + `
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, coverImageURL, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrDBNotFound
		}
		return models.User{}, fmt.Errorf("updating user cover image: %w", err)
	}

	return user, nil
}

// ---------------------------------------------
// Refresh token state
// ---------------------------------------------

// SetRefreshToken overwrites the stored refresh token, invalidating any prior
// one. Only this column is touched, so no other field is re-validated.
func (s *service) SetRefreshToken(ctx context.Context, userID, token string) error {
	const query = `
		UPDATE accounts.users
		SET refresh_token = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	return s.execExpectingRow(ctx, query, token, userID)
}

// ClearRefreshToken removes the stored refresh token. Idempotent: clearing an
// already-absent token succeeds, as does clearing for a vanished user.
func (s *service) ClearRefreshToken(ctx context.Context, userID string) error {
	const query = `
		UPDATE accounts.users
		SET refresh_token = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}

	return nil
}

// RotateRefreshToken swaps the stored refresh token for a new one, but only
// if the stored value still equals current. A concurrent rotation that
// already replaced the token makes this a zero-row update, and the caller
// must treat that as an invalid token.
func (s *service) RotateRefreshToken(ctx context.Context, userID, current, next string) error {
	const query = `
		UPDATE accounts.users
		SET refresh_token = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND refresh_token = $3
	`

	return s.execExpectingRow(ctx, query, next, userID, current)
}

// ---------------------------------------------
// Reporting
// ---------------------------------------------

// GetWatchHistory returns the user's watched videos, most recent first.
func (s *service) GetWatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	const query = `
		SELECT video_id, watched_at
		FROM accounts.watch_history
		WHERE user_id = $1
		ORDER BY watched_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing watch history: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchHistoryEntry
	for rows.Next() {
		var entry models.WatchHistoryEntry
		if err := rows.Scan(&entry.VideoID, &entry.WatchedAt); err != nil {
			return nil, fmt.Errorf("scanning watch history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watch history: %w", err)
	}

	return entries, nil
}

// ---------------------------------------------
// Helpers
// ---------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (models.User, error) {
	var user models.User
	var refreshToken sql.NullString
	if err := scanner.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Password,
		&user.AvatarURL,
		&user.CoverImageURL,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return models.User{}, err
	}

	user.RefreshToken = StringPtr(refreshToken)

	return user, nil
}

// execExpectingRow runs an update that must touch exactly one row and maps a
// zero-row result to ErrDBNotFound.
func (s *service) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDBNotFound
	}

	return nil
}

// isPgError checks if the error is a PostgreSQL error with the given code.
func isPgError(err error, code string) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == code
	}
	return false
}

// NullString creates a sql.NullString from a string pointer.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr returns a pointer to a string from sql.NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDBNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error.
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDBDuplicatedEntry) || isPgError(err, uniqueViolation)
}
