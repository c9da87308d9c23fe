package repofake

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/listings"
	"github.com/jrsteele09/campus-market/profiles"
)

// Op names a repository call for failure injection.
type Op string

const (
	OpList         Op = "list"
	OpGet          Op = "get"
	OpInsertItem   Op = "insert_item"
	OpInsertImages Op = "insert_images"
	OpDeleteItem   Op = "delete_item"
)

var _ listings.Repo = (*FakeListingRepo)(nil)

type FakeListingRepo struct {
	lock     sync.RWMutex
	items    map[string]listings.Item
	images   map[string][]listings.Image
	sellers  profiles.Repo
	failures map[Op]error
}

// NewFakeListingRepo returns an empty repo. Seller details are read from
// sellers when it is not nil.
func NewFakeListingRepo(sellers profiles.Repo) *FakeListingRepo {
	return &FakeListingRepo{
		items:    make(map[string]listings.Item),
		images:   make(map[string][]listings.Image),
		sellers:  sellers,
		failures: make(map[Op]error),
	}
}

// Fail makes op return err; nil clears it.
func (r *FakeListingRepo) Fail(op Op, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

func (r *FakeListingRepo) ListBySchool(_ context.Context, school string, category listings.Category) ([]listings.Item, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if err := r.failures[OpList]; err != nil {
		return nil, err
	}

	items := make([]listings.Item, 0)
	for _, it := range r.items {
		if it.School != school || (category != "" && it.Category != category) {
			continue
		}
		if imgs := r.images[it.ID]; len(imgs) > 0 {
			it.ThumbnailURL = imgs[0].URL
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *FakeListingRepo) GetDetails(ctx context.Context, itemID string) (*listings.ProductDetails, error) {
	r.lock.RLock()
	if err := r.failures[OpGet]; err != nil {
		r.lock.RUnlock()
		return nil, err
	}
	it, ok := r.items[itemID]
	images := append([]listings.Image{}, r.images[itemID]...)
	r.lock.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	if len(images) > 0 {
		it.ThumbnailURL = images[0].URL
	}
	details := &listings.ProductDetails{Item: it, Images: images}
	if r.sellers != nil {
		if p, err := r.sellers.Get(ctx, it.SellerID); err == nil {
			details.Seller = listings.Seller{
				DisplayName: p.DisplayName,
				AvatarURL:   p.AvatarURL,
				School:      p.School,
				Program:     p.Program,
			}
		}
	}
	return details, nil
}

func (r *FakeListingRepo) InsertItem(_ context.Context, item *listings.Item) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.failures[OpInsertItem]; err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.items[item.ID] = *item
	return nil
}

func (r *FakeListingRepo) InsertImages(_ context.Context, images []listings.Image) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.failures[OpInsertImages]; err != nil {
		return err
	}
	for _, im := range images {
		if _, ok := r.items[im.ItemID]; !ok {
			return apperrors.ErrNotFound
		}
	}
	for _, im := range images {
		r.images[im.ItemID] = append(r.images[im.ItemID], im)
	}
	return nil
}

func (r *FakeListingRepo) DeleteItem(_ context.Context, itemID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.failures[OpDeleteItem]; err != nil {
		return err
	}
	if _, ok := r.items[itemID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.items, itemID)
	delete(r.images, itemID)
	return nil
}

func (r *FakeListingRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.items)
}
