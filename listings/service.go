package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxImages    = 5
	DefaultMaxImageSize = 5 << 20
)

var maxPrice = decimal.NewFromInt(100000)

// ValidationError is returned for bad listing input. Message is shown to the
// seller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidArgument
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type Service struct {
	repo         Repo
	store        storage.ObjectStore
	validate     *validator.Validate
	nowTime      func() time.Time
	maxImages    int
	maxImageSize int64
}

type ServiceOption func(*Service)

func WithMaxImages(n int) ServiceOption {
	return func(s *Service) {
		s.maxImages = n
	}
}

func WithMaxImageSize(size int64) ServiceOption {
	return func(s *Service) {
		s.maxImageSize = size
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repo Repo, store storage.ObjectStore, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] listing repo is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] object store is required")
	}

	s := &Service{
		repo:         repo,
		store:        store,
		validate:     validator.New(),
		nowTime:      time.Now,
		maxImages:    DefaultMaxImages,
		maxImageSize: DefaultMaxImageSize,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ListItems returns the items of school, optionally narrowed to category.
func (s *Service) ListItems(ctx context.Context, school string, category Category) ([]Item, error) {
	school = strings.TrimSpace(school)
	if school == "" {
		return nil, invalid("School parameter is required")
	}
	if category != "" && !category.Valid() {
		return nil, invalid("Unknown category %q", category)
	}

	items, err := s.repo.ListBySchool(ctx, school, category)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ListItems] list items")
	}
	return items, nil
}

// GetItem returns the details of one item. Malformed ids are reported as not found.
func (s *Service) GetItem(ctx context.Context, itemID string) (*ProductDetails, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return nil, apperrors.ErrNotFound
	}
	details, err := s.repo.GetDetails(ctx, itemID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.GetItem] get item")
	}
	return details, nil
}

// CreateListing uploads the images, then writes the item and its image rows.
// When a later step fails the item row and every uploaded object are removed.
func (s *Service) CreateListing(ctx context.Context, sellerID string, listing NewListing, uploads []Upload) (*ListingResult, error) {
	if sellerID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	listing = listing.trimmed()
	if err := s.validateListing(listing, uploads); err != nil {
		return nil, err
	}

	itemID := uuid.NewString()
	images := make([]Image, 0, len(uploads))
	for i, up := range uploads {
		key := storage.NewImageKey(sellerID, up.Filename, up.ContentType)
		url, err := s.store.Put(ctx, key, up.Body, up.Size, up.ContentType)
		if err != nil {
			s.removeObjects(images)
			listingRollbacks.WithLabelValues("upload").Inc()
			return nil, errors.Wrapf(err, "[Service.CreateListing] upload image %d", i)
		}
		images = append(images, Image{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			URL:        url,
			StorageKey: key,
			Position:   i,
		})
	}

	item := &Item{
		ID:          itemID,
		SellerID:    sellerID,
		Title:       listing.Title,
		Description: listing.Description,
		Price:       listing.Price.Round(2),
		Category:    listing.Category,
		Condition:   listing.Condition,
		School:      listing.School,
		CreatedAt:   s.nowTime().UTC(),
	}
	if err := s.repo.InsertItem(ctx, item); err != nil {
		s.removeObjects(images)
		listingRollbacks.WithLabelValues("item").Inc()
		return nil, errors.Wrap(err, "[Service.CreateListing] insert item")
	}

	if err := s.repo.InsertImages(ctx, images); err != nil {
		if delErr := s.repo.DeleteItem(context.WithoutCancel(ctx), itemID); delErr != nil {
			log.Err(delErr).Str("item_id", itemID).Msg("failed to roll back item after image insert failure")
		}
		s.removeObjects(images)
		listingRollbacks.WithLabelValues("images").Inc()
		return nil, errors.Wrap(err, "[Service.CreateListing] insert images")
	}

	listingsCreated.WithLabelValues(string(item.Category)).Inc()
	result := &ListingResult{ItemID: itemID, ImageURLs: make([]string, 0, len(images))}
	for _, im := range images {
		result.ImageURLs = append(result.ImageURLs, im.URL)
	}
	return result, nil
}

func (s *Service) validateListing(listing NewListing, uploads []Upload) error {
	if err := s.validate.Struct(listing); err != nil {
		return invalid("%s", validationMessage(err))
	}
	if listing.Price.IsNegative() {
		return invalid("Price cannot be negative")
	}
	if listing.Price.GreaterThan(maxPrice) {
		return invalid("Price must be at most %s", maxPrice.String())
	}

	if len(uploads) == 0 {
		return invalid("At least one image is required")
	}
	if len(uploads) > s.maxImages {
		return invalid("A listing can have at most %d images", s.maxImages)
	}
	for _, up := range uploads {
		if up.Body == nil {
			return invalid("Image %q is empty", up.Filename)
		}
		if !storage.IsImageContentType(up.ContentType) {
			return invalid("Image %q must be a JPEG, PNG, WebP or GIF", up.Filename)
		}
		if up.Size > s.maxImageSize {
			return invalid("Image %q is larger than %d MB", up.Filename, s.maxImageSize>>20)
		}
	}
	return nil
}

// removeObjects deletes uploaded objects, logging failures.
func (s *Service) removeObjects(images []Image) {
	for _, im := range images {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.store.Delete(ctx, im.StorageKey); err != nil {
			log.Err(err).Str("key", im.StorageKey).Msg("failed to remove uploaded image")
		}
		cancel()
	}
}

func (l NewListing) trimmed() NewListing {
	l.Title = strings.TrimSpace(l.Title)
	l.Description = strings.TrimSpace(l.Description)
	l.School = strings.TrimSpace(l.School)
	l.Category = Category(strings.ToLower(strings.TrimSpace(string(l.Category))))
	l.Condition = Condition(strings.ToLower(strings.TrimSpace(string(l.Condition))))
	return l
}

var fieldLabels = map[string]string{
	"Title":       "Title",
	"Description": "Description",
	"Category":    "Category",
	"Condition":   "Condition",
	"School":      "School",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid listing"
	}
	fe := verrs[0]
	label := fieldLabels[fe.Field()]
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return label + " is invalid"
	}
}
