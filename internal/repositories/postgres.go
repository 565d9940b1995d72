package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gearmarket/backend/internal/db"
	"github.com/gearmarket/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, role, full_name, phone, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Email, user.Password, user.Role, user.FullName, user.Phone, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, role, full_name, phone, avatar_url, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	return scanUser(row, "select user by email")
}

// FindByID fetches a user by their identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, role, full_name, phone, avatar_url, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	return scanUser(row, "select user by id")
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, password_hash = $3, full_name = $4, phone = $5, avatar_url = $6, updated_at = $7
        WHERE id = $1
    `, user.ID, user.Email, user.Password, user.FullName, user.Phone, user.AvatarURL, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row, operation string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Role, &user.FullName, &user.Phone, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", operation, err)
	}
	return user, nil
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Create persists a new profile row. The profile id matches the owning user id.
func (r *PostgresProfileRepository) Create(ctx context.Context, profile models.Profile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (id, full_name, avatar_url, bio, location, phone, website, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, profile.ID, profile.FullName, profile.AvatarURL, profile.Bio, profile.Location, profile.Phone, profile.Website, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// Find loads the full profile for the provided user id.
func (r *PostgresProfileRepository) Find(ctx context.Context, id string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, full_name, avatar_url, bio, location, phone, website, created_at, updated_at
        FROM profiles
        WHERE id = $1
    `, id)

	var profile models.Profile
	if err := row.Scan(&profile.ID, &profile.FullName, &profile.AvatarURL, &profile.Bio, &profile.Location, &profile.Phone, &profile.Website, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

// Update applies the non-nil fields of the update and returns the stored profile.
func (r *PostgresProfileRepository) Update(ctx context.Context, id string, update ProfileUpdate) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	set := []string{"updated_at = NOW()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.FullName != nil {
		appendSet("full_name", *update.FullName)
	}
	if update.AvatarURL != nil {
		appendSet("avatar_url", *update.AvatarURL)
	}
	if update.Bio != nil {
		appendSet("bio", *update.Bio)
	}
	if update.Location != nil {
		appendSet("location", *update.Location)
	}
	if update.Phone != nil {
		appendSet("phone", *update.Phone)
	}
	if update.Website != nil {
		appendSet("website", *update.Website)
	}

	query := fmt.Sprintf(`
        UPDATE profiles
        SET %s
        WHERE id = $1
        RETURNING id, full_name, avatar_url, bio, location, phone, website, created_at, updated_at
    `, strings.Join(set, ", "))

	row := conn.QueryRow(ctx, query, args...)

	var profile models.Profile
	if err := row.Scan(&profile.ID, &profile.FullName, &profile.AvatarURL, &profile.Bio, &profile.Location, &profile.Phone, &profile.Website, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}

	return profile, nil
}

// SearchByName performs a case-insensitive substring search over full names.
func (r *PostgresProfileRepository) SearchByName(ctx context.Context, query string, limit, offset int) ([]models.PublicProfile, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	pattern := "%" + query + "%"

	var total int
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM profiles WHERE full_name ILIKE $1
    `, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT id, full_name, avatar_url, created_at
        FROM profiles
        WHERE full_name ILIKE $1
        ORDER BY full_name ASC
        LIMIT $2 OFFSET $3
    `, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.PublicProfile
	for rows.Next() {
		var profile models.PublicProfile
		if err := rows.Scan(&profile.ID, &profile.FullName, &profile.AvatarURL, &profile.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, total, nil
}

// PostgresAdRepository provides PostgreSQL-backed persistence for ads.
type PostgresAdRepository struct {
	pool db.Pool
}

// NewPostgresAdRepository constructs an ad repository backed by PostgreSQL.
func NewPostgresAdRepository(pool db.Pool) *PostgresAdRepository {
	return &PostgresAdRepository{pool: pool}
}

const adColumns = "id, user_id, title, description, price, image, location, seller, rating, is_favorite, status, created_at, updated_at"

// Create stores a new ad record.
func (r *PostgresAdRepository) Create(ctx context.Context, ad models.Ad) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO ads (id, user_id, title, description, price, image, location, seller, rating, is_favorite, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, ad.ID, ad.UserID, ad.Title, ad.Description, ad.Price, ad.Image, ad.Location, ad.Seller, ad.Rating, ad.IsFavorite, ad.Status, ad.CreatedAt, ad.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert ad: %w", err)
	}

	return nil
}

// FindByID loads a single ad.
func (r *PostgresAdRepository) FindByID(ctx context.Context, id string) (models.Ad, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Ad{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id)

	ad, err := scanAd(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ad{}, ErrNotFound
		}
		return models.Ad{}, fmt.Errorf("select ad: %w", err)
	}

	return ad, nil
}

// OwnerOf returns the owning user id for an ad without loading the full row.
func (r *PostgresAdRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var owner string
	if err := conn.QueryRow(ctx, `SELECT user_id FROM ads WHERE id = $1`, id).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select ad owner: %w", err)
	}

	return owner, nil
}

// List returns a filtered, sorted page of ads plus the total match count.
func (r *PostgresAdRepository) List(ctx context.Context, filter AdFilter) ([]models.Ad, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where, args := adFilterClauses(filter)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM ads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ads: %w", err)
	}

	query := `SELECT ` + adColumns + ` FROM ads` + where + ` ORDER BY ` + adOrderBy(filter.Sort)
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query ads: %w", err)
	}
	defer rows.Close()

	ads, err := collectAds(rows)
	if err != nil {
		return nil, 0, err
	}

	return ads, total, nil
}

// ListByUser returns a page of one user's ads, optionally filtered by status.
func (r *PostgresAdRepository) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]models.Ad, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where := " WHERE user_id = $1"
	args := []any{userID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM ads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user ads: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+adColumns+` FROM ads%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query user ads: %w", err)
	}
	defer rows.Close()

	ads, err := collectAds(rows)
	if err != nil {
		return nil, 0, err
	}

	return ads, total, nil
}

// Update applies the non-nil fields of the update and returns the stored ad.
func (r *PostgresAdRepository) Update(ctx context.Context, id string, update AdUpdate) (models.Ad, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Ad{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	set := []string{"updated_at = NOW()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		appendSet("title", *update.Title)
	}
	if update.Description != nil {
		appendSet("description", *update.Description)
	}
	if update.Price != nil {
		appendSet("price", *update.Price)
	}
	if update.Image != nil {
		appendSet("image", *update.Image)
	}
	if update.Location != nil {
		appendSet("location", *update.Location)
	}
	if update.Seller != nil {
		appendSet("seller", *update.Seller)
	}
	if update.Rating != nil {
		appendSet("rating", *update.Rating)
	}
	if update.IsFavorite != nil {
		appendSet("is_favorite", *update.IsFavorite)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}

	query := fmt.Sprintf(`
        UPDATE ads
        SET %s
        WHERE id = $1
        RETURNING %s
    `, strings.Join(set, ", "), adColumns)

	ad, err := scanAd(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ad{}, ErrNotFound
		}
		return models.Ad{}, fmt.Errorf("update ad: %w", err)
	}

	return ad, nil
}

// Delete removes an ad by primary key.
func (r *PostgresAdRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ad: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func adFilterClauses(filter AdFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.PriceMin != nil {
		args = append(args, *filter.PriceMin)
		clauses = append(clauses, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.PriceMax != nil {
		args = append(args, *filter.PriceMax)
		clauses = append(clauses, fmt.Sprintf("price <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func adOrderBy(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "price ASC, created_at DESC"
	case SortPriceDesc:
		return "price DESC, created_at DESC"
	case SortOldest:
		return "created_at ASC"
	case SortNewest, SortRelevance:
		return "created_at DESC"
	default:
		return "created_at DESC"
	}
}

func scanAd(row pgx.Row) (models.Ad, error) {
	var ad models.Ad
	err := row.Scan(&ad.ID, &ad.UserID, &ad.Title, &ad.Description, &ad.Price, &ad.Image, &ad.Location, &ad.Seller, &ad.Rating, &ad.IsFavorite, &ad.Status, &ad.CreatedAt, &ad.UpdatedAt)
	return ad, err
}

func collectAds(rows pgx.Rows) ([]models.Ad, error) {
	var ads []models.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads: %w", err)
	}

	return ads, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ AdRepository = (*PostgresAdRepository)(nil)
