// Package validation provides input validators shared by the API handlers.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	emailRe      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRe      = regexp.MustCompile(`^\+?1?[-. ]?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}$`)
	urlRe        = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
	scenarioIDRe = regexp.MustCompile(`^scenario_\d+_\d+$`)

	stripPolicy = bluemonday.StrictPolicy()
)

// PasswordPolicy describes the complexity rules a password must satisfy.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy matches the account security requirements.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	if len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// CheckPassword validates a password against the policy and returns the list
// of unmet requirements. An empty slice means the password is acceptable.
func CheckPassword(password string, policy PasswordPolicy) []string {
	var issues []string

	if len(password) < policy.MinLength {
		issues = append(issues, fmt.Sprintf("must be at least %d characters long", policy.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		issues = append(issues, "must contain an uppercase letter")
	}
	if policy.RequireLowercase && !hasLower {
		issues = append(issues, "must contain a lowercase letter")
	}
	if policy.RequireDigit && !hasDigit {
		issues = append(issues, "must contain a digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		issues = append(issues, "must contain a special character")
	}

	return issues
}

// ValidPhone reports whether s looks like a US phone number.
func ValidPhone(s string) bool {
	return phoneRe.MatchString(strings.TrimSpace(s))
}

// ValidUUID reports whether s parses as a UUID.
func ValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidURL reports whether s is an absolute http(s) URL.
func ValidURL(s string) bool {
	return urlRe.MatchString(s)
}

// ValidScenarioID reports whether s matches the scenario id format
// (scenario_<category>_<number>).
func ValidScenarioID(s string) bool {
	return scenarioIDRe.MatchString(s)
}

// ValidScore reports whether a grading score is in the 0-100 range.
func ValidScore(score float64) bool {
	return score >= 0 && score <= 100
}

// SafeFilename checks an uploaded filename: no path traversal, no separators,
// and an extension from allowed. Extensions are compared without the dot,
// case-insensitively.
func SafeFilename(name string, allowed []string) error {
	if name == "" {
		return fmt.Errorf("filename is empty")
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("filename contains path elements")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return fmt.Errorf("filename has no extension")
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return nil
		}
	}
	return fmt.Errorf("file type %q is not allowed", ext)
}

// StripHTML removes all HTML markup from user-supplied text.
func StripHTML(s string) string {
	return strings.TrimSpace(stripPolicy.Sanitize(s))
}
