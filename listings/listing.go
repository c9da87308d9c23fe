// Package listings stores marketplace items and creates new listings with
// their images.
package listings

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryTextbooks   Category = "textbooks"
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryClothing    Category = "clothing"
	CategoryAppliances  Category = "appliances"
	CategorySports      Category = "sports"
	CategoryOther       Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTextbooks,
	CategoryElectronics,
	CategoryFurniture,
	CategoryClothing,
	CategoryAppliances,
	CategorySports,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

// Item is a listing as shown in browse results.
type Item struct {
	ID           string          `json:"id"`
	SellerID     string          `json:"seller_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     Category        `json:"category"`
	Condition    Condition       `json:"condition"`
	School       string          `json:"school"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Image struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	URL        string `json:"url"`
	StorageKey string `json:"-"`
	Position   int    `json:"position"`
}

// Seller is the public part of the seller's profile. Fields are empty when
// the seller has no profile yet.
type Seller struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	School      string `json:"school,omitempty"`
	Program     string `json:"program,omitempty"`
}

// ProductDetails is an item with everything its detail page shows.
type ProductDetails struct {
	Item
	Images []Image `json:"images"`
	Seller Seller  `json:"seller"`
}

// NewListing is the seller's input for a listing.
type NewListing struct {
	Title       string          `json:"title" validate:"required,min=3,max=120"`
	Description string          `json:"description" validate:"required,max=2000"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category" validate:"required,oneof=textbooks electronics furniture clothing appliances sports other"`
	Condition   Condition       `json:"condition" validate:"required,oneof=new like_new good fair poor"`
	School      string          `json:"school" validate:"required,max=120"`
}

// Upload is one image file attached to a new listing.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ListingResult struct {
	ItemID    string   `json:"item_id"`
	ImageURLs []string `json:"image_urls"`
}
