package models

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Product represents a catalog item as returned by the API
type Product struct {
	ID          int64           `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Category    string          `json:"category" yaml:"category"`
	Brand       string          `json:"brand" yaml:"brand"`
	Stock       int             `json:"stock" yaml:"stock"`
	Rating      *float64        `json:"rating,omitempty" yaml:"rating,omitempty"`
	ImagePath   *string         `json:"image_path,omitempty" yaml:"image_path,omitempty"` // relative to the asset base
	CreatedAt   *Timestamp      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ProductDraft holds the fields of a product that has not been assigned an ID yet
type ProductDraft struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Brand       string
	Stock       int
	Rating      *float64 // nil is sent as 0
}

// ProductPatch names the fields to change on an existing product.
// A nil field is left untouched by the server; a non-nil field is always
// sent, including zero values.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Brand       *string
	Stock       *int
	Rating      *float64
}

// IsEmpty reports whether the patch names no fields at all
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Category == nil && p.Brand == nil && p.Stock == nil && p.Rating == nil
}

// ProductFilter selects a subset of the product collection. Empty values are
// not sent, so the zero filter lists everything.
type ProductFilter struct {
	Category string `yaml:"category,omitempty"`
	Search   string `yaml:"search,omitempty"`
}

// User represents an account as returned by the API. Passwords never appear in reads.
type User struct {
	ID    int64   `json:"id" yaml:"id"`
	Email string  `json:"email" yaml:"email"`
	Name  *string `json:"name,omitempty" yaml:"name,omitempty"`
}

// UserDraft is the payload for creating a user; Password is mandatory
type UserDraft struct {
	Email    string  `json:"email"`
	Name     *string `json:"name,omitempty"`
	Password string  `json:"password"`
}

// UserPatch names the fields to change on a user. A nil Password leaves it unchanged.
type UserPatch struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty reports whether the patch names no fields at all
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.Password == nil
}

// ProfilePatch names the fields to change on the signed-in user's own account
type ProfilePatch struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
}

// PasswordChange is the body of the change-password call
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Ptr returns a pointer to v, for building patches inline
func Ptr[T any](v T) *T {
	return &v
}

// Timestamp accepts both RFC 3339 and the zone-less ISO 8601 form the API
// emits for naive UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return errors.Errorf("unrecognised timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	return t.UTC().Format(time.RFC3339), nil
}
