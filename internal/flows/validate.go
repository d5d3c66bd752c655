// Package flows holds the sign-in, sign-up, and refresh sequences as
// dependency-injected runners. Each runner classifies its failures into a
// FailureKind so the root package can map them onto its sentinel errors
// without the flows importing the root.
package flows

import (
	"net/mail"
	"strings"
	"unicode"
)

// Policy bounds sign-up form fields.
type Policy struct {
	UsernameMinLength     int
	UsernameMaxLength     int
	PasswordMinLength     int
	PasswordRequireLower  bool
	PasswordRequireUpper  bool
	PasswordRequireDigit  bool
	PasswordRequireSymbol bool
}

// Form is the flow-local sign-up form.
type Form struct {
	Username string
	Email    string
	Password string
	Name     string
	Phone    string
}

// FieldError names one rejected field and why.
type FieldError struct {
	Field   string
	Message string
}

// ValidateSignUpForm checks the form against policy and returns every
// violation, not just the first.
func ValidateSignUpForm(form Form, policy Policy) []FieldError {
	var errs []FieldError

	username := strings.TrimSpace(form.Username)
	switch {
	case username == "":
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	case len(username) < policy.UsernameMinLength:
		errs = append(errs, FieldError{Field: "username", Message: "username too short"})
	case policy.UsernameMaxLength > 0 && len(username) > policy.UsernameMaxLength:
		errs = append(errs, FieldError{Field: "username", Message: "username too long"})
	}

	email := strings.TrimSpace(form.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "email is not valid"})
	}

	errs = append(errs, validatePassword(form.Password, policy)...)

	if strings.TrimSpace(form.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	}

	return errs
}

func validatePassword(password string, policy Policy) []FieldError {
	var errs []FieldError

	if password == "" {
		return []FieldError{{Field: "password", Message: "password is required"}}
	}
	if len(password) < policy.PasswordMinLength {
		errs = append(errs, FieldError{Field: "password", Message: "password too short"})
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if policy.PasswordRequireLower && !hasLower {
		errs = append(errs, FieldError{Field: "password", Message: "password needs a lowercase letter"})
	}
	if policy.PasswordRequireUpper && !hasUpper {
		errs = append(errs, FieldError{Field: "password", Message: "password needs an uppercase letter"})
	}
	if policy.PasswordRequireDigit && !hasDigit {
		errs = append(errs, FieldError{Field: "password", Message: "password needs a digit"})
	}
	if policy.PasswordRequireSymbol && !hasSymbol {
		errs = append(errs, FieldError{Field: "password", Message: "password needs a symbol"})
	}

	return errs
}
