package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podx/internal/models"
	"github.com/desertthunder/podx/internal/shared"
)

var _ models.Repository[*models.User] = (*UserRepository)(nil)

const userColumns = `id, sequence, spotify_id, display_name, email, country, product,
		last_login_at, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	return r.create(context.Background(), user)
}

func (r *UserRepository) create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO users (id, sequence, spotify_id, display_name, email, country, product,
			last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id, sequence, user.SpotifyID(), user.DisplayName(), user.Email(), user.Country(), user.Product(),
		user.LastLoginAt(), user.CreatedAt(), user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	return r.getBy(context.Background(), "id", id)
}

// GetBySpotifyID retrieves a user by their Spotify account ID, excluding soft-deleted users
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	return r.getBy(ctx, "spotify_id", spotifyID)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ? AND deleted_at IS NULL`, userColumns, column)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	return r.update(context.Background(), user)
}

func (r *UserRepository) update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()

	query := `
		UPDATE users
		SET display_name = ?, email = ?, country = ?, product = ?, last_login_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		user.DisplayName(), user.Email(), user.Country(), user.Product(), user.LastLoginAt(), now, user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}

	user.SetUpdatedAt(now)
	return nil
}

// RecordLogin stores the profile of a user who just signed in.
//
// An existing user with the same Spotify ID has their profile fields and last login refreshed;
// otherwise a new user is created. The stored user is returned.
func (r *UserRepository) RecordLogin(ctx context.Context, profile models.Profile) (*models.User, error) {
	now := time.Now()

	existing, err := r.GetBySpotifyID(ctx, profile.ID)
	switch {
	case errors.Is(err, shared.ErrUserNotFound):
		user := models.UserFromProfile(profile)
		if err := r.create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	case err != nil:
		return nil, err
	}

	existing.SetDisplayName(profile.DisplayName)
	existing.SetEmail(profile.Email)
	existing.SetCountry(profile.Country)
	existing.SetProduct(profile.Product)
	existing.SetLastLoginAt(now)

	if err := r.update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Supported criteria are "spotify_id", "email" and "product".
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE deleted_at IS NULL`, userColumns)
	args := []any{}

	for _, column := range []string{"spotify_id", "email", "product"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		id, spotifyID, displayName  string
		email, country, product     string
		sequence                    int
		lastLogin, created, updated time.Time
		deletedAt                   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &spotifyID, &displayName, &email, &country, &product,
		&lastLogin, &created, &updated, &deletedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, spotifyID, displayName, email)
	user.SetID(id)
	user.SetCountry(country)
	user.SetProduct(product)
	user.SetLastLoginAt(lastLogin)
	user.SetCreatedAt(created)
	user.SetUpdatedAt(updated)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	return user, nil
}
