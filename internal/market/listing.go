// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package market

import (
	"context"
	"strconv"
	"strings"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// DefaultPageSize caps Browse when no limit is given.
const DefaultPageSize = 50

// ListingForm is the sell form. Price and Stock hold the raw input text.
type ListingForm struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Author      string `json:"author" validate:"max=200"`
	Description string `json:"description" validate:"max=4000"`
	Category    string `json:"category" validate:"max=60"`
	Condition   string `json:"condition" validate:"omitempty,oneof=new like_new good fair poor"`
	Price       string `json:"price" validate:"required,numeric,positive"`
	Stock       string `json:"stock" validate:"required,number"`
}

func (f ListingForm) trimmed() ListingForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Condition = strings.TrimSpace(f.Condition)
	f.Price = strings.TrimSpace(f.Price)
	f.Stock = strings.TrimSpace(f.Stock)
	return f
}

// Validate checks the form and returns *validation.RequestValidationError
// on failure.
func (f ListingForm) Validate() error {
	if verr := validation.ValidateStruct(f.trimmed()); verr != nil {
		return verr
	}
	return nil
}

// row converts a validated form into an insert payload.
func (f ListingForm) row(sellerID string) (models.NewListing, error) {
	f = f.trimmed()
	price, err := strconv.ParseFloat(f.Price, 64)
	if err != nil {
		return models.NewListing{}, validation.NewFieldError("price", "numeric", "price must be a number")
	}
	stock, err := strconv.Atoi(f.Stock)
	if err != nil {
		return models.NewListing{}, validation.NewFieldError("stock", "number", "stock must be a whole number")
	}
	return models.NewListing{
		SellerID:    sellerID,
		Title:       f.Title,
		Author:      f.Author,
		Description: f.Description,
		Category:    f.Category,
		Condition:   f.Condition,
		Price:       price,
		Stock:       stock,
		Status:      models.ListingActive,
	}, nil
}

// BrowseOptions narrows the active listings.
type BrowseOptions struct {
	Category string
	Search   string // case-insensitive title substring
	Limit    int
}

// matches applies query's conditions to one row, for rows arriving through
// the change feed.
func (o BrowseOptions) matches(l models.Listing) bool {
	if l.Status != models.ListingActive {
		return false
	}
	if o.Category != "" && l.Category != o.Category {
		return false
	}
	s := strings.ToLower(strings.TrimSpace(o.Search))
	return s == "" || strings.Contains(strings.ToLower(l.Title), s)
}

func (o BrowseOptions) query() platform.Query {
	q := platform.Where("status", models.ListingActive)
	if o.Category != "" {
		q = q.Eq("category", o.Category)
	}
	if s := strings.TrimSpace(o.Search); s != "" {
		q = q.ILike("title", "*"+s+"*")
	}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return q.OrderBy("created_at", true).Limit(limit)
}

// Service manages listings, drafts, favorites and reports.
type Service struct {
	gw      platform.Gateway
	buckets config.StorageConfig
}

// NewService creates a market service.
func NewService(gw platform.Gateway, buckets config.StorageConfig) *Service {
	return &Service{gw: gw, buckets: buckets}
}

// Publish validates form and lists the book for sale. The image is optional.
func (s *Service) Publish(ctx context.Context, form ListingForm, image *platform.File) (models.Listing, error) {
	if err := form.Validate(); err != nil {
		return models.Listing{}, err
	}
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Listing{}, err
	}
	row, err := form.row(uid)
	if err != nil {
		return models.Listing{}, err
	}
	if !image.Empty() {
		row.ImageURL, err = platform.UploadPublic(ctx, s.gw, s.buckets.ListingBucket, uid, image.Name, image.ContentType, image.Data)
		if err != nil {
			return models.Listing{}, err
		}
	}

	l, err := platform.InsertAs[models.Listing](ctx, s.gw, models.TableListings, row)
	if err != nil {
		return models.Listing{}, err
	}
	logging.Ctx(ctx).Info().Str("listing_id", l.ID).Str("title", l.Title).Msg("Listing published")
	return l, nil
}

// Update saves form over one of the signed-in user's listings.
func (s *Service) Update(ctx context.Context, id string, form ListingForm) (models.Listing, error) {
	if err := form.Validate(); err != nil {
		return models.Listing{}, err
	}
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Listing{}, err
	}
	row, err := form.row(uid)
	if err != nil {
		return models.Listing{}, err
	}
	return s.patch(ctx, id, uid, map[string]any{
		"title":       row.Title,
		"author":      row.Author,
		"description": row.Description,
		"category":    row.Category,
		"condition":   row.Condition,
		"price":       row.Price,
		"stock":       row.Stock,
	})
}

// SetStatus marks a listing active, sold or archived.
func (s *Service) SetStatus(ctx context.Context, id, status string) (models.Listing, error) {
	switch status {
	case models.ListingActive, models.ListingSold, models.ListingArchived:
	default:
		return models.Listing{}, validation.NewFieldError("status", "oneof", "status must be one of: active sold archived")
	}
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Listing{}, err
	}
	return s.patch(ctx, id, uid, map[string]any{"status": status})
}

// UploadImage replaces a listing's image.
func (s *Service) UploadImage(ctx context.Context, id string, image *platform.File) (models.Listing, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Listing{}, err
	}
	if image.Empty() {
		return models.Listing{}, validation.NewFieldError("image", "required", "image is required")
	}
	url, err := platform.UploadPublic(ctx, s.gw, s.buckets.ListingBucket, uid, image.Name, image.ContentType, image.Data)
	if err != nil {
		return models.Listing{}, err
	}
	return s.patch(ctx, id, uid, map[string]any{"image_url": url})
}

func (s *Service) patch(ctx context.Context, id, sellerID string, patch map[string]any) (models.Listing, error) {
	rows, err := platform.UpdateAs[models.Listing](ctx, s.gw, models.TableListings,
		platform.Where("id", id).Eq("seller_id", sellerID), patch)
	if err != nil {
		return models.Listing{}, err
	}
	if len(rows) == 0 {
		return models.Listing{}, platform.ErrNotFound
	}
	return rows[0], nil
}

// Delete removes one of the signed-in user's listings.
func (s *Service) Delete(ctx context.Context, id string) error {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	return s.gw.Delete(ctx, models.TableListings, platform.Where("id", id).Eq("seller_id", uid))
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id string) (models.Listing, error) {
	return platform.SelectOne[models.Listing](ctx, s.gw, models.TableListings, platform.Where("id", id))
}

// Browse returns active listings, newest first.
func (s *Service) Browse(ctx context.Context, opts BrowseOptions) ([]models.Listing, error) {
	return platform.SelectAs[models.Listing](ctx, s.gw, models.TableListings, opts.query())
}

// Mine returns the signed-in user's listings in every status, newest first.
func (s *Service) Mine(ctx context.Context) ([]models.Listing, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return nil, err
	}
	return platform.SelectAs[models.Listing](ctx, s.gw, models.TableListings,
		platform.Where("seller_id", uid).OrderBy("created_at", true))
}

// ReportForm flags a listing.
type ReportForm struct {
	Reason string `json:"reason" validate:"notblank,max=500"`
}

// Report flags a listing for review.
func (s *Service) Report(ctx context.Context, listingID, reason string) error {
	form := ReportForm{Reason: strings.TrimSpace(reason)}
	if verr := validation.ValidateStruct(form); verr != nil {
		return verr
	}
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	_, err = s.gw.Insert(ctx, models.TableReports, models.NewReport{
		ReporterID: uid, TargetType: models.ReportListing, TargetID: listingID, Reason: form.Reason,
	})
	return err
}
