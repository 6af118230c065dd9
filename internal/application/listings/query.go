package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// StatusAny disables the implicit status = active filter.
	StatusAny = "any"
)

// searchColumns are matched by every free-text search word.
var searchColumns = []string{"title", "description", "course", "category"}

// sortColumns whitelists sortable fields.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"title":      "title",
}

// Filter narrows a listings read. Zero values mean "no filter", except Status
// which falls back to active.
type Filter struct {
	Category  string
	Status    string
	UserID    uuid.UUID
	Condition string
	Search    string
	MinPrice  *float64
	MaxPrice  *float64
}

// Sort orders a listings read; Field defaults to created_at (descending).
type Sort struct {
	Field     string
	Ascending bool
}

// Page is one window of listings plus the total matching count.
type Page struct {
	Listings []ListingView `json:"listings"`
	Total    int64         `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

// ListingView is a listing with its owner profile nested and images ordered.
type ListingView struct {
	ID             uuid.UUID             `json:"id"`
	UserID         uuid.UUID             `json:"user_id"`
	Title          string                `json:"title"`
	Course         string                `json:"course"`
	Category       string                `json:"category"`
	Attributes     datatypes.JSONMap     `json:"attributes"`
	Price          float64               `json:"price"`
	Condition      string                `json:"condition"`
	Description    string                `json:"description"`
	ContactByEmail bool                  `json:"contact_by_email"`
	ContactEmail   string                `json:"contact_email"`
	ContactByPhone bool                  `json:"contact_by_phone"`
	ContactPhone   string                `json:"contact_phone"`
	Status         string                `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Profile        *domain.Profile       `json:"profile"`
	Images         []domain.ListingImage `json:"images"`
}

// listingRow is one row of the listings_with_profiles view.
type listingRow struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Title          string
	Course         string
	Category       string
	Attributes     datatypes.JSONMap
	Price          float64
	Condition      string
	Description    string
	ContactByEmail bool
	ContactEmail   string
	ContactByPhone bool
	ContactPhone   string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	ProfileFirstName  *string
	ProfileLastName   *string
	ProfileEmail      *string
	ProfilePhone      *string
	ProfileStudyCycle *string
	ProfileSchoolYear *string
	ProfileCreatedAt  *time.Time
}

func (r listingRow) view() ListingView {
	v := ListingView{
		ID:             r.ID,
		UserID:         r.UserID,
		Title:          r.Title,
		Course:         r.Course,
		Category:       r.Category,
		Attributes:     r.Attributes,
		Price:          r.Price,
		Condition:      r.Condition,
		Description:    r.Description,
		ContactByEmail: r.ContactByEmail,
		ContactEmail:   r.ContactEmail,
		ContactByPhone: r.ContactByPhone,
		ContactPhone:   r.ContactPhone,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Images:         []domain.ListingImage{},
	}
	// LEFT JOIN: a listing whose owner has no profile row keeps Profile nil.
	if r.ProfileFirstName != nil || r.ProfileEmail != nil {
		p := &domain.Profile{
			ID:         r.UserID,
			FirstName:  deref(r.ProfileFirstName),
			LastName:   deref(r.ProfileLastName),
			Email:      deref(r.ProfileEmail),
			Phone:      deref(r.ProfilePhone),
			StudyCycle: deref(r.ProfileStudyCycle),
			SchoolYear: deref(r.ProfileSchoolYear),
		}
		if r.ProfileCreatedAt != nil {
			p.CreatedAt = *r.ProfileCreatedAt
		}
		v.Profile = p
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// applyFilter folds every filter into q. Status defaults to active.
func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	switch f.Status {
	case "":
		q = q.Where("status = ?", domain.ListingStatusActive)
	case StatusAny:
	default:
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.UserID != uuid.Nil {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Condition != "" {
		q = q.Where("condition = ?", f.Condition)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if cond, args := searchCondition(f.Search); cond != "" {
		q = q.Where(cond, args...)
	}
	return q
}

// searchCondition ORs a case-insensitive substring match of every word across
// every search column: "calc maths" matches a title with "calc" or a description
// with "maths".
func searchCondition(search string) (string, []interface{}) {
	words := strings.Fields(search)
	if len(words) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(words)*len(searchColumns))
	args := make([]interface{}, 0, cap(conds))
	for _, w := range words {
		pattern := "%" + escapeLike(strings.ToLower(w)) + "%"
		for _, col := range searchColumns {
			conds = append(conds, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col))
			args = append(args, pattern)
		}
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderClause(s Sort) (string, error) {
	field := s.Field
	if field == "" {
		field = "created_at"
	}
	col, ok := sortColumns[field]
	if !ok {
		return "", ErrInvalidSort
	}
	dir := "DESC"
	if s.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, id %s", col, dir, dir), nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// GetListings runs a filtered, sorted, paginated read against the listings view.
func (s *Service) GetListings(ctx context.Context, f Filter, sort Sort, limit, offset int) (*Page, error) {
	order, err := orderClause(sort)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	base := func() *gorm.DB {
		return applyFilter(s.DB.WithContext(ctx).Table(database.ListingsView), f)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("listings: count failed")
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}

	var rows []listingRow
	if err := base().Order(order).Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		log.Error().Err(err).Msg("listings: query failed")
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}

	views := make([]ListingView, len(rows))
	for i, r := range rows {
		views[i] = r.view()
	}
	if err := s.attachImages(ctx, views); err != nil {
		return nil, err
	}
	return &Page{Listings: views, Total: total, Limit: limit, Offset: offset}, nil
}

// GetListing returns one listing regardless of status.
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*ListingView, error) {
	var rows []listingRow
	if err := s.DB.WithContext(ctx).Table(database.ListingsView).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		log.Error().Err(err).Str("listing_id", id.String()).Msg("listings: fetch failed")
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrListingNotFound
	}
	views := []ListingView{rows[0].view()}
	if err := s.attachImages(ctx, views); err != nil {
		return nil, err
	}
	return &views[0], nil
}

// attachImages loads images for every view in one query, ordered by display_order.
func (s *Service) attachImages(ctx context.Context, views []ListingView) error {
	if len(views) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(views))
	idx := make(map[uuid.UUID]int, len(views))
	for i, v := range views {
		ids[i] = v.ID
		idx[v.ID] = i
	}
	var images []domain.ListingImage
	if err := s.DB.WithContext(ctx).Where("listing_id IN ?", ids).Order("display_order ASC").Find(&images).Error; err != nil {
		log.Error().Err(err).Msg("listings: image query failed")
		return fmt.Errorf("Failed to fetch listing images: %w", err)
	}
	for _, img := range images {
		i := idx[img.ListingID]
		views[i].Images = append(views[i].Images, img)
	}
	for i := range views {
		domain.SortImages(views[i].Images)
	}
	return nil
}
