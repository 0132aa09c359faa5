package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"conversation-service/internal/models"
)

// UserStore is what the conversation core needs from the user store.
type UserStore interface {
	Exists(ctx context.Context, userID string) (bool, error)
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
}

// UserRepository adds the generic resource operations over users.
type UserRepository interface {
	UserStore
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	Update(ctx context.Context, id string, user models.User) (models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Exists reports whether a user with the id is known.
func (r *UserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID)
	return exists, err
}

// GetProfiles fetches profiles for the given ids; unknown ids are skipped.
func (r *UserRepo) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	profiles := []models.Profile{}
	if len(ids) == 0 {
		return profiles, nil
	}
	err := r.db.SelectContext(ctx, &profiles, `SELECT id, name, image FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return profiles, err
}

// List returns all users.
func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT id, name, image, created_at FROM users ORDER BY created_at ASC`)
	return users, err
}

// Get fetches a user by id.
func (r *UserRepo) Get(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, image, created_at FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Create inserts a user, generating an id when the caller has none.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	var created models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, name, image) VALUES ($1, $2, $3) RETURNING id, name, image, created_at`,
		user.ID, user.Name, user.Image).StructScan(&created)
	return created, err
}

// Update replaces the mutable fields of a user.
func (r *UserRepo) Update(ctx context.Context, id string, user models.User) (models.User, error) {
	var updated models.User
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users SET name=$2, image=$3 WHERE id=$1 RETURNING id, name, image, created_at`,
		id, user.Name, user.Image).StructScan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return updated, err
}

// Delete removes a user.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
