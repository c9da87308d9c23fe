package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/listings"
	"github.com/jrsteele09/campus-market/schools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// multipart parts beyond this are spooled to disk
const multipartMemory = 8 << 20

func (s *Server) ListItemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := s.listings.ListItems(r.Context(), q.Get("school"), listings.Category(q.Get("category")))
		if err != nil {
			var invalid *listings.ValidationError
			if errors.As(err, &invalid) {
				writeError(w, http.StatusBadRequest, invalid.Message)
				return
			}
			log.Err(err).Str("school", q.Get("school")).Msg("failed to list items")
			writeError(w, http.StatusInternalServerError, "Failed to fetch items")
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) GetItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := r.PathValue("id")
		details, err := s.listings.GetItem(r.Context(), itemID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Item not found")
				return
			}
			log.Err(err).Str("item_id", itemID).Msg("failed to fetch item")
			writeError(w, http.StatusInternalServerError, "Failed to fetch item")
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

// CreateListingHandler accepts a multipart form with the listing fields and
// one or more files under "images". It runs behind RequireAuth.
func (s *Server) CreateListingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.config.GetMaxUploadBytes())
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Upload exceeds the %d MB limit", tooLarge.Limit>>20))
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		listing, err := listingFromForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		uploads, closeAll, err := uploadsFromForm(r.MultipartForm.File["images"])
		defer closeAll()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := s.listings.CreateListing(r.Context(), claims.Subject, listing, uploads)
		if err != nil {
			var invalid *listings.ValidationError
			switch {
			case errors.As(err, &invalid):
				writeError(w, http.StatusBadRequest, invalid.Message)
			case apperrors.Is(err, apperrors.ErrUnauthenticated):
				writeError(w, http.StatusUnauthorized, "Authentication required")
			default:
				log.Err(err).Str("seller_id", claims.Subject).Msg("failed to create listing")
				writeError(w, http.StatusInternalServerError, "Failed to create listing")
			}
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func listingFromForm(r *http.Request) (listings.NewListing, error) {
	rawPrice := strings.TrimSpace(r.FormValue("price"))
	if rawPrice == "" {
		return listings.NewListing{}, errors.New("Price is required")
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return listings.NewListing{}, errors.New("Price must be a number")
	}
	return listings.NewListing{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Category:    listings.Category(r.FormValue("category")),
		Condition:   listings.Condition(r.FormValue("condition")),
		School:      r.FormValue("school"),
	}, nil
}

// uploadsFromForm opens every file header. The returned func closes whatever
// was opened and is safe to call on error.
func uploadsFromForm(files []*multipart.FileHeader) ([]listings.Upload, func(), error) {
	opened := make([]multipart.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]listings.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, errors.Errorf("Could not read image %q", fh.Filename)
		}
		opened = append(opened, f)
		uploads = append(uploads, listings.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

func (s *Server) ListSchoolsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		writeJSON(w, http.StatusOK, schools.List(schools.Filter{
			Name:     q.Get("name"),
			Type:     schools.Type(q.Get("type")),
			District: q.Get("district"),
		}))
	}
}
