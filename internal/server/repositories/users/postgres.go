package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/models"
)

const userColumns = `id, username, email, password_hash, is_verified, first_name, last_name,
	date_of_birth, bio, mobile_number, gender, cover_image, profile_image_url, created_at, updated_at`

// constraintFields maps unique constraints of the users table to the field
// reported in common.DuplicateKeyError.
var constraintFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsVerified, &u.FirstName, &u.LastName,
		&u.DateOfBirth, &u.Bio, &u.MobileNumber, &u.Gender, &u.CoverImage, &u.ProfileImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return u, nil
}

// Create inserts an unverified user and fills in the generated id and
// timestamps. A unique violation is reported as *common.DuplicateKeyError.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, first_name, last_name, date_of_birth)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, is_verified, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.DateOfBirth).
		Scan(&user.ID, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			field, known := constraintFields[constraint]
			if !known {
				field = constraint
			}
			return nil, &common.DuplicateKeyError{Fields: []string{field}}
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return user, nil
}

// FindByLoginName looks the user up by email when loginName is an email
// address and by username otherwise.
func (r *PostgresRepository) FindByLoginName(ctx context.Context, loginName string) (*models.User, error) {
	if common.IsEmail(loginName) {
		return r.FindByEmail(ctx, loginName)
	}
	return r.findBy(ctx, "username", loginName)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findBy(ctx, "id", id)
}

// findBy is only called with column names from this file.
func (r *PostgresRepository) findBy(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, value))
}

func (r *PostgresRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresRepository) exists(ctx context.Context, query, value string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return found, nil
}

// MarkVerified flips is_verified on. Verifying an already verified user is
// not an error.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// UpdateProfile sets only the supplied fields and returns the updated row.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("bio", upd.Bio)
	add("mobile_number", upd.MobileNumber)
	add("gender", upd.Gender)
	add("cover_image", upd.CoverImage)
	add("profile_image_url", upd.ProfileImageURL)

	if len(sets) == 0 {
		return nil, common.ErrNoProfileData
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	return scanUser(r.db.QueryRowContext(ctx, query, args...))
}
