package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/bekberov/go-user-service/app/observability/metrics"
	"github.com/bekberov/go-user-service/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user data persistence.
type UserRepo interface {
	// GetUserByID retrieves a user by their unique ID.
	// Returns types.ErrNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// GetUserByEmail retrieves a user by email.
	// Returns types.ErrNotFound if no user carries that email.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// ExistsByEmail reports whether a user with the email is already stored.
	// Advisory only: the unique constraint on users.email is authoritative.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ListAll returns every stored user in storage order.
	ListAll(ctx context.Context) ([]types.User, error)

	// ListByBirthDateRange returns users born within [from, to], ordered by birth date.
	ListByBirthDateRange(ctx context.Context, from, to types.Date) ([]types.User, error)

	// Insert persists a new user. A duplicate email surfaces the unique-constraint
	// violation as a descriptive error.
	Insert(ctx context.Context, user types.User) error

	// Update overwrites the stored record for user.ID.
	Update(ctx context.Context, user types.User) error

	// Delete removes the user by ID. Deleting an absent id is not an error.
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Querier is the subset of pgxpool.Pool the repository needs. pgxmock
// implements it too, which is what the repository tests run against.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	db     Querier
}

func NewPostgresUserRepo(db Querier, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		db:     db,
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, birth_date, address, phone_number, role, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var birthDate time.Time
	var role *string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&birthDate, &u.Address, &u.PhoneNumber, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.BirthDate = types.Date{Time: birthDate}
	if role != nil {
		u.Role = types.Role(*role)
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	start := time.Now()
	u, err := scanUser(r.db.QueryRow(ctx, query, userID))
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("fetch user by id: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	start := time.Now()
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	start := time.Now()
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		email).Scan(&exists)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return false, fmt.Errorf("check email existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	start := time.Now()
	rows, err := r.db.Query(ctx, query)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PostgresUserRepo) ListByBirthDateRange(ctx context.Context, from, to types.Date) ([]types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "ListByBirthDateRange", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE birth_date BETWEEN $1 AND $2 ORDER BY birth_date`
	start := time.Now()
	rows, err := r.db.Query(ctx, query, from.Time, to.Time)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Birth date range query failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("search users by birth date: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]types.User, error) {
	users := make([]types.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepo) Insert(ctx context.Context, user types.User) error {
	start := time.Now()
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, birth_date, address, phone_number, role, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.BirthDate.Time, user.Address, user.PhoneNumber, roleValue(user.Role),
		user.CreatedAt, user.UpdatedAt)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s is already in use", types.ErrBadRequest, user.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, user types.User) error {
	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
                birth_date = $6, address = $7, phone_number = $8, role = $9, updated_at = $10
         WHERE id = $1`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.BirthDate.Time, user.Address, user.PhoneNumber, roleValue(user.Role),
		user.UpdatedAt)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s is already in use", types.ErrBadRequest, user.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already absent: delete is idempotent
		r.logger.DebugContext(ctx, "Delete on absent user", slog.String("userID", userID.String()))
	}
	return nil
}

// roleValue maps the optional role to its nullable column value.
func roleValue(role types.Role) *string {
	if role == "" {
		return nil
	}
	s := string(role)
	return &s
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation (SQLSTATE 23505), e.g. from a concurrent insert racing the
// validator's advisory existence check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
