package listings

import "context"

// Repo persists items and their images. Get methods return
// errors.ErrNotFound for unknown ids.
type Repo interface {
	// ListBySchool returns the school's items, newest first. An empty
	// category matches every category.
	ListBySchool(ctx context.Context, school string, category Category) ([]Item, error)
	GetDetails(ctx context.Context, itemID string) (*ProductDetails, error)
	InsertItem(ctx context.Context, item *Item) error
	InsertImages(ctx context.Context, images []Image) error
	DeleteItem(ctx context.Context, itemID string) error
}
