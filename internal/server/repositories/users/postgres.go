package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/dbx"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/photoref"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository stores accounts in users and user_roles.
type PostgresRepository struct {
	*photoref.PostgresRef
	db dbx.DBTX
}

// NewPostgresRepository returns a repository bound to the provided DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{
		PostgresRef: photoref.NewPostgresRef(db, "users", "id"),
		db:          db,
	}
}

// Create inserts user and returns it with created_at filled in. A taken
// username or mail maps to ErrUsernameTaken or ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, username, password_hash, name, surname, mail, salutation, country)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.UserName, user.PasswordHash, user.Name, user.Surname, user.Mail, user.Salutation, user.Country).
		Scan(&user.CreatedAt)

	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	return user, nil
}

// AddRole grants role to userID.
func (r *PostgresRepository) AddRole(ctx context.Context, userID, role string) error {
	query := `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, role); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID loads a user and its roles, or returns common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, name, surname, mail, salutation, country, photo_id, created_at, updated_at
		 FROM users WHERE id = $1
		 `
	if err := dbx.CheckID(id); err != nil {
		return nil, err
	}
	return r.getOne(ctx, query, id)
}

// GetByUserName is GetByID keyed by username.
func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, name, surname, mail, salutation, country, photo_id, created_at, updated_at
		 FROM users WHERE username = $1
		 `
	return r.getOne(ctx, query, userName)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var photoID sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.UserName, &user.PasswordHash, &user.Name, &user.Surname,
		&user.Mail, &user.Salutation, &user.Country, &photoID, &user.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if photoID.Valid {
		user.PhotoID = &photoID.String
	}
	if updatedAt.Valid {
		user.UpdatedAt = &updatedAt.Time
	}

	roles, err := r.roles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func (r *PostgresRepository) roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select roles: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		result = append(result, role)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) ExistsByUserName(ctx context.Context, userName string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, userName)
}

func (r *PostgresRepository) ExistsByMail(ctx context.Context, mail string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE mail = $1)`, mail)
}

func (r *PostgresRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return found, nil
}

// UpdateProfile applies the non-nil fields of patch.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, patch models.UserPatch) error {
	if err := dbx.CheckID(id); err != nil {
		return err
	}

	query :=
		`UPDATE users SET
			username = COALESCE($2, username),
			name = COALESCE($3, name),
			surname = COALESCE($4, surname),
			mail = COALESCE($5, mail),
			salutation = COALESCE($6, salutation),
			country = COALESCE($7, country),
			updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id,
		nullable(patch.UserName), nullable(patch.Name), nullable(patch.Surname),
		nullable(patch.Mail), nullable(patch.Salutation), nullable(patch.Country))
	if err != nil {
		return mapUniqueViolation(err)
	}

	return expectOneRow(res)
}

// UpdatePassword stores a new bcrypt hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	if err := dbx.CheckID(id); err != nil {
		return err
	}

	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

// Delete removes the user; roles go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if err := dbx.CheckID(id); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}

	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return common.ErrUsernameTaken
		case "users_mail_key":
			return common.ErrEmailTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}
