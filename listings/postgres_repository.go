package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/campus-market/internal/dbx"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
)

var _ Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db      dbx.DBTX
	nowTime func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, nowTime: time.Now}
}

const itemColumns = `i.id, i.seller_id, i.title, i.description, i.price, i.category, i.condition, i.school, i.created_at,
		        COALESCE((SELECT im.url FROM item_images im WHERE im.item_id = i.id ORDER BY im.position LIMIT 1), '')`

func (r *PostgresRepository) ListBySchool(ctx context.Context, school string, category Category) ([]Item, error) {
	query :=
		`SELECT ` + itemColumns + `
		 FROM items i
		 WHERE i.school = $1
		 `
	args := []any{school}
	if category != "" {
		query += `AND i.category = $2
		 `
		args = append(args, string(category))
	}
	query += `ORDER BY i.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SellerID, &it.Title, &it.Description, &it.Price,
			&it.Category, &it.Condition, &it.School, &it.CreatedAt, &it.ThumbnailURL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) GetDetails(ctx context.Context, itemID string) (*ProductDetails, error) {
	query :=
		`SELECT ` + itemColumns + `,
		        COALESCE(p.display_name, ''), COALESCE(p.avatar_url, ''), COALESCE(p.school, ''), COALESCE(p.program, '')
		 FROM items i
		 LEFT JOIN profiles p ON p.id = i.seller_id
		 WHERE i.id = $1
		 `

	d := &ProductDetails{}
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&d.ID, &d.SellerID, &d.Title, &d.Description, &d.Price, &d.Category, &d.Condition,
		&d.School, &d.CreatedAt, &d.ThumbnailURL,
		&d.Seller.DisplayName, &d.Seller.AvatarURL, &d.Seller.School, &d.Seller.Program,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	images, err := r.images(ctx, itemID)
	if err != nil {
		return nil, err
	}
	d.Images = images
	return d, nil
}

func (r *PostgresRepository) images(ctx context.Context, itemID string) ([]Image, error) {
	query :=
		`SELECT id, item_id, url, storage_key, position
		 FROM item_images
		 WHERE item_id = $1
		 ORDER BY position
		 `

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var im Image
		if err := rows.Scan(&im.ID, &im.ItemID, &im.URL, &im.StorageKey, &im.Position); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		images = append(images, im)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return images, nil
}

func (r *PostgresRepository) InsertItem(ctx context.Context, item *Item) error {
	query :=
		`INSERT INTO items (id, seller_id, title, description, price, category, condition, school, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 `

	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.nowTime().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.SellerID, item.Title, item.Description, item.Price,
		string(item.Category), string(item.Condition), item.School, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// InsertImages writes all rows in a single statement.
func (r *PostgresRepository) InsertImages(ctx context.Context, images []Image) error {
	if len(images) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO item_images (id, item_id, url, storage_key, position) VALUES `)
	args := make([]any, 0, len(images)*5)
	for i, im := range images {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, im.ID, im.ItemID, im.URL, im.StorageKey, im.Position)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
