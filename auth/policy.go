package auth

import (
	"errors"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"

	"intelplatform/models"
)

// Username character policies. The strict one is the default.
const (
	PolicyAlnum           = "alnum"
	PolicyAlnumUnderscore = "alnum_underscore_space"
)

var usernamePatterns = map[string]*regexp.Regexp{
	PolicyAlnum:           regexp.MustCompile(`^[A-Za-z0-9]+$`),
	PolicyAlnumUnderscore: regexp.MustCompile(`^[A-Za-z0-9_ ]+$`),
}

// Strength labels returned by Register.
type Strength string

const (
	Weak   Strength = "Weak"
	Medium Strength = "Medium"
	Strong Strength = "Strong"
)

type registration struct {
	Username string `validate:"required,min=3,max=20,username"`
	Password string `validate:"required,min=8,max=64,letterdigit"`
	Role     string `validate:"required,role"`
}

// Policy validates registration input.
type Policy struct {
	validate *validator.Validate
}

// NewPolicy builds a policy for the named username rule. Unknown names fall
// back to PolicyAlnum.
func NewPolicy(usernamePolicy string) *Policy {
	pattern, ok := usernamePatterns[usernamePolicy]
	if !ok {
		pattern = usernamePatterns[PolicyAlnum]
	}

	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("letterdigit", func(fl validator.FieldLevel) bool {
		var letter, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsLetter(r):
				letter = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return letter && digit
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return ValidRole(fl.Field().String())
	})
	return &Policy{validate: v}
}

// Check returns ErrInvalidUsername, ErrInvalidPassword or ErrInvalidRole for
// the first offending field.
func (p *Policy) Check(username, password, role string) error {
	err := p.validate.Struct(registration{Username: username, Password: password, Role: role})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Username":
		return ErrInvalidUsername
	case "Password":
		return ErrInvalidPassword
	default:
		return ErrInvalidRole
	}
}

// ValidRole reports whether role is one of the department roles or admin.
func ValidRole(role string) bool {
	switch role {
	case models.RoleCyber, models.RoleIT, models.RoleData, models.RoleAdmin:
		return true
	}
	return false
}

// SignupRole reports whether role may be chosen at self-service signup.
// Admin accounts are only created by an operator.
func SignupRole(role string) bool {
	return role != models.RoleAdmin && ValidRole(role)
}

// PasswordStrength grades a password by length and character classes.
func PasswordStrength(password string) Strength {
	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	classes := 0
	for _, present := range []bool{lower, upper, digit, other} {
		if present {
			classes++
		}
	}

	n := len([]rune(password))
	switch {
	case n >= 12 && classes >= 3:
		return Strong
	case n >= 8 && classes >= 2:
		return Medium
	default:
		return Weak
	}
}
