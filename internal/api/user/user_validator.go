package user

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bekberov/go-user-service/internal/types"
)

// emailPattern accepts a local part of letters, digits and + _ . - followed
// by any non-empty domain.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

var _ Validator = (*RuleValidator)(nil)

// Validator checks user payloads against the registration rules and
// accumulates every violation instead of stopping at the first one.
type Validator interface {
	ValidateCreate(ctx context.Context, req types.CreateUserRequest) error
	ValidateUpdate(ctx context.Context, stored types.User, params types.UpdateUserParams, merged types.User) error
}

// RuleValidator enforces the field rules. The repository backs the email
// uniqueness check; ageLimit is the minimum whole age in years.
type RuleValidator struct {
	repo     UserRepo
	ageLimit int
	now      func() time.Time
}

func NewRuleValidator(repo UserRepo, ageLimit int) *RuleValidator {
	return &RuleValidator{
		repo:     repo,
		ageLimit: ageLimit,
		now:      time.Now,
	}
}

// ValidateCreate checks a registration payload. All field rules are evaluated;
// the returned *types.ValidationError carries one violation per failed field,
// in field order.
func (v *RuleValidator) ValidateCreate(ctx context.Context, req types.CreateUserRequest) error {
	verr := &types.ValidationError{}

	checkNameLength(verr, "firstName", req.FirstName,
		"The firstname field must be between 2 and 50 characters long.")
	checkNameLength(verr, "lastName", req.LastName,
		"The lastname field must be between 2 and 50 characters long.")

	exists, err := v.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("validate email uniqueness: %w", err)
	}
	if exists {
		verr.Add("email", "Email is already in use!")
	} else if !emailPattern.MatchString(req.Email) {
		verr.Add("email", "The email field should look like email. For example: bekberov@gmail.com")
	}

	checkPasswordLength(verr, req.Password)
	v.checkBirthDate(verr, req.BirthDate)

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// ValidateUpdate checks the merged record that would result from applying
// params to stored. Email is immutable: a request naming any email other
// than the stored one is rejected. The password rule applies only when the
// request carries a new plaintext password.
func (v *RuleValidator) ValidateUpdate(ctx context.Context, stored types.User, params types.UpdateUserParams, merged types.User) error {
	verr := &types.ValidationError{}

	if params.Email != nil && *params.Email != stored.Email {
		verr.Add("email", "The email field cannot be updated!")
	}

	checkNameLength(verr, "firstName", merged.FirstName,
		"The firstname field must be between 2 and 50 characters long.")
	checkNameLength(verr, "lastName", merged.LastName,
		"The lastname field must be between 2 and 50 characters long.")

	if params.Password != nil {
		checkPasswordLength(verr, *params.Password)
	}

	v.checkBirthDate(verr, merged.BirthDate)

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func checkNameLength(verr *types.ValidationError, field, value, message string) {
	n := len([]rune(value))
	if n < 2 || n > 50 {
		verr.Add(field, message)
	}
}

func checkPasswordLength(verr *types.ValidationError, password string) {
	n := len([]rune(password))
	if n < 8 || n > 30 {
		verr.Add("password", "The password field must be between 8 and 30 characters long.")
	}
}

func (v *RuleValidator) checkBirthDate(verr *types.ValidationError, birthDate types.Date) {
	now := v.now().UTC()
	if birthDate.Time.After(now) {
		verr.Add("birthDate", "Birthdate cannot be in the future.")
		return
	}
	if ageInYears(birthDate.Time, now) < v.ageLimit {
		verr.Add("birthDate", fmt.Sprintf("User must be older than %d years.", v.ageLimit))
	}
}

// ageInYears counts whole years between birth and now, stepping back one
// when this year's anniversary hasn't happened yet.
func ageInYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if birth.AddDate(years, 0, 0).After(now) {
		years--
	}
	return years
}
