package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ListingIDPattern matches listing ids as they appear in /job/<id> links.
var ListingIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// ValidListingID reports whether s looks like a listing id.
func ValidListingID(s string) bool {
	return ListingIDPattern.MatchString(s)
}

// ValidateListingID is the validator.Func behind the "listing_id" tag.
func ValidateListingID(fl validator.FieldLevel) bool {
	return ValidListingID(fl.Field().String())
}

// Register registers the custom validators on v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("listing_id", ValidateListingID)
}
