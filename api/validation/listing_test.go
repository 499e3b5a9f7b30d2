package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestValidListingID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"81234567", true},
		{"1", true},
		{"", false},
		{"12a", false},
		{"../etc", false},
		{"123?ref=x", false},
	}
	for _, tt := range tests {
		if got := ValidListingID(tt.in); got != tt.want {
			t.Errorf("ValidListingID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegister(t *testing.T) {
	v := validator.New()
	Register(v)

	type req struct {
		IDs []string `validate:"required,dive,listing_id"`
	}
	if err := v.Struct(req{IDs: []string{"1", "22"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Struct(req{IDs: []string{"1", "x"}}); err == nil {
		t.Error("expected validation error for non-numeric id")
	}
}
