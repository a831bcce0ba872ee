package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User represents the core user entity in the domain.
type User struct {
	ID           uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"` // Unique identifier, generated at creation.
	Email        string    `json:"email" example:"john.doe@example.com"`              // Unique email address used for login. Immutable after creation.
	PasswordHash string    `json:"-"`                                                 // Hashed password (never exposed).
	FirstName    string    `json:"first_name" example:"John"`
	LastName     string    `json:"last_name" example:"Doe"`
	BirthDate    Date      `json:"birth_date" swaggertype:"string" example:"1990-01-01"`
	Address      *string   `json:"address,omitempty"`      // Optional free-form address.
	PhoneNumber  *string   `json:"phone_number,omitempty"` // Optional phone number.
	Role         Role      `json:"role,omitempty"`         // User role (e.g. USER, ADMIN).
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserRequest is the payload for user creation and self-registration.
// The password travels in plaintext here and is hashed before persisting.
type CreateUserRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	BirthDate   Date    `json:"birth_date" swaggertype:"string" example:"1990-01-01"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Role        Role    `json:"role,omitempty"`
}

// UpdateUserParams is the partial update payload. Every field is a pointer so
// that "absent" (keep the stored value) and "present" (overwrite, even with an
// empty value) stay distinguishable. The target id always comes from the URL
// path, never from the body.
type UpdateUserParams struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	BirthDate   *Date   `json:"birth_date,omitempty" swaggertype:"string" example:"1990-01-01"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Role        *Role   `json:"role,omitempty"`
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Role is the closed set of role tags a user may carry.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a known tag. The empty role is allowed
// (role is optional on the record).
func (r Role) Valid() bool {
	switch r {
	case "", RoleUser, RoleAdmin:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown role tags at the boundary so no invalid value
// can reach validation or storage.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q, must be one of USER, ADMIN", s)
	}
	*r = role
	return nil
}

// Permission is a capability granted by a role.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionUpdate Permission = "update"
	PermissionWrite  Permission = "write"
)

// Permissions returns the capabilities for the role.
func (r Role) Permissions() []Permission {
	switch r {
	case RoleAdmin:
		return []Permission{PermissionRead, PermissionUpdate, PermissionWrite}
	case RoleUser:
		return []Permission{PermissionRead, PermissionUpdate}
	}
	return nil
}
