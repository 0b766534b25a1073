package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/catalog-admin/internal/gateway"
	"github.com/lehigh-university-libraries/catalog-admin/internal/images"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

// Requester is the subset of the gateway the synchronizers use
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
	PutJSON(ctx context.Context, path string, in, out any) error
	PostMultipart(ctx context.Context, path string, form *gateway.Form, out any) error
	PutMultipart(ctx context.Context, path string, form *gateway.Form, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Authenticator reports whether a session is active
type Authenticator interface {
	Authenticated() bool
}

const maxRating = 5

// Products keeps the product view in step with the server. Every successful
// mutation is followed by a refetch with the active filter.
type Products struct {
	api   Requester
	auth  Authenticator
	locks keyedMutex
	view  view[models.Product]

	mu     sync.RWMutex
	filter models.ProductFilter
}

func NewProducts(api Requester, auth Authenticator) *Products {
	return &Products{api: api, auth: auth}
}

// List fetches the products matching filter, makes filter the active one
// and replaces the view
func (p *Products) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if !p.auth.Authenticated() {
		return nil, gateway.NotAuthenticated()
	}

	items, err := p.fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	p.mu.Lock()
	p.filter = filter
	p.mu.Unlock()
	p.view.replace(items)
	return items, nil
}

func (p *Products) Get(ctx context.Context, id int64) (models.Product, error) {
	if !p.auth.Authenticated() {
		return models.Product{}, gateway.NotAuthenticated()
	}

	var product models.Product
	if err := p.api.Get(ctx, productPath(id), nil, &product); err != nil {
		return models.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return product, nil
}

// Create sends every field as multipart even when there is no image
func (p *Products) Create(ctx context.Context, draft models.ProductDraft, img *images.Attachment) (models.Product, error) {
	if !p.auth.Authenticated() {
		return models.Product{}, gateway.NotAuthenticated()
	}
	if err := validateDraft(draft); err != nil {
		return models.Product{}, err
	}

	rating := 0.0
	if draft.Rating != nil {
		rating = *draft.Rating
	}
	form := gateway.NewForm().
		Set("name", draft.Name).
		Set("description", draft.Description).
		Set("price", draft.Price.String()).
		Set("category", draft.Category).
		Set("brand", draft.Brand).
		Set("stock", strconv.Itoa(draft.Stock)).
		Set("rating", formatRating(rating))
	attach(form, img)

	var created models.Product
	if err := p.api.PostMultipart(ctx, "/products", form, &created); err != nil {
		return models.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	slog.Info("Product created", "id", created.ID, "name", created.Name)

	p.refresh(ctx)
	return created, nil
}

// Update transmits exactly the fields set in patch. Zero values that are set
// are transmitted.
func (p *Products) Update(ctx context.Context, id int64, patch models.ProductPatch, img *images.Attachment) (models.Product, error) {
	if !p.auth.Authenticated() {
		return models.Product{}, gateway.NotAuthenticated()
	}
	if patch.IsEmpty() && img.Empty() {
		return models.Product{}, gateway.Invalid("patch", "Nothing to update")
	}
	if err := validatePatch(patch); err != nil {
		return models.Product{}, err
	}

	form := gateway.NewForm()
	if patch.Name != nil {
		form.Set("name", *patch.Name)
	}
	if patch.Description != nil {
		form.Set("description", *patch.Description)
	}
	if patch.Price != nil {
		form.Set("price", patch.Price.String())
	}
	if patch.Category != nil {
		form.Set("category", *patch.Category)
	}
	if patch.Brand != nil {
		form.Set("brand", *patch.Brand)
	}
	if patch.Stock != nil {
		form.Set("stock", strconv.Itoa(*patch.Stock))
	}
	if patch.Rating != nil {
		form.Set("rating", formatRating(*patch.Rating))
	}
	attach(form, img)

	unlock := p.locks.lock(id)
	defer unlock()

	var updated models.Product
	if err := p.api.PutMultipart(ctx, productPath(id), form, &updated); err != nil {
		return models.Product{}, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	slog.Info("Product updated", "id", id, "fields", form.Fields())

	p.refresh(ctx)
	return updated, nil
}

// Remove deletes a product. Confirmation is the caller's job.
func (p *Products) Remove(ctx context.Context, id int64) error {
	if !p.auth.Authenticated() {
		return gateway.NotAuthenticated()
	}

	unlock := p.locks.lock(id)
	defer unlock()

	if err := p.api.Delete(ctx, productPath(id), nil); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	slog.Info("Product deleted", "id", id)

	p.refresh(ctx)
	return nil
}

// Categories returns the distinct category labels, sorted
func (p *Products) Categories(ctx context.Context) ([]string, error) {
	if !p.auth.Authenticated() {
		return nil, gateway.NotAuthenticated()
	}

	var categories []string
	if err := p.api.Get(ctx, "/categories", nil, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	slices.Sort(categories)
	return slices.Compact(categories), nil
}

// View returns a copy of the current product view
func (p *Products) View() []models.Product {
	return p.view.snapshot()
}

func (p *Products) Filter() models.ProductFilter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// Stale reports whether the last refetch after a mutation failed
func (p *Products) Stale() bool {
	return p.view.isStale()
}

func (p *Products) fetch(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := url.Values{}
	query.Set("category", filter.Category)
	query.Set("search", filter.Search)

	items := []models.Product{}
	if err := p.api.Get(ctx, "/products", query, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// refresh reloads the view after a mutation. A failure keeps the old view
// and marks it stale; the mutation itself already succeeded.
func (p *Products) refresh(ctx context.Context) {
	filter := p.Filter()
	items, err := p.fetch(ctx, filter)
	if err != nil {
		slog.Warn("Unable to refresh products", "category", filter.Category, "search", filter.Search, "err", err)
		p.view.markStale()
		return
	}
	p.view.replace(items)
}

func validateDraft(d models.ProductDraft) error {
	for _, f := range []struct{ name, value string }{
		{"name", d.Name},
		{"description", d.Description},
		{"category", d.Category},
		{"brand", d.Brand},
	} {
		if strings.TrimSpace(f.value) == "" {
			return gateway.Invalid(f.name, fmt.Sprintf("%s is required", f.name))
		}
	}
	if d.Price.IsNegative() {
		return gateway.Invalid("price", "price must not be negative")
	}
	if d.Stock < 0 {
		return gateway.Invalid("stock", "stock must not be negative")
	}
	return validateRating(d.Rating)
}

func validatePatch(patch models.ProductPatch) error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"name", patch.Name},
		{"description", patch.Description},
		{"category", patch.Category},
		{"brand", patch.Brand},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return gateway.Invalid(f.name, fmt.Sprintf("%s must not be blank", f.name))
		}
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return gateway.Invalid("price", "price must not be negative")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return gateway.Invalid("stock", "stock must not be negative")
	}
	return validateRating(patch.Rating)
}

// validateRating accepts only values inside [0, maxRating], which rules out NaN
func validateRating(r *float64) error {
	if r != nil && !(*r >= 0 && *r <= maxRating) {
		return gateway.Invalid("rating", "rating must be between 0 and 5")
	}
	return nil
}

func attach(form *gateway.Form, img *images.Attachment) {
	if img.Empty() {
		return
	}
	form.AttachFile("image", img.Filename, img.MediaType, img.Data())
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
