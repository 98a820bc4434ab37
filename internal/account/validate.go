package account

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	specialRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	nonDigit  = regexp.MustCompile(`\D`)
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 12
	minSignupScore = 50
)

func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// NormalizePhone strips everything but digits.
func NormalizePhone(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

func ValidatePhone(s string) error {
	switch n := len(NormalizePhone(s)); {
	case n == 0:
		return errors.New("phone is required")
	case n < minPhoneDigits:
		return errors.New("phone number must be at least 10 digits")
	case n > maxPhoneDigits:
		return errors.New("phone number is too long")
	}
	return nil
}

type Strength struct {
	Score    int      `json:"score"`
	Level    string   `json:"level"`
	Feedback []string `json:"feedback"`
}

// PasswordStrength scores length, upper, lower and digits at 25 each with a
// 10 point bonus for a special character.
func PasswordStrength(pw string) Strength {
	if pw == "" {
		return Strength{Level: "none", Feedback: []string{"Enter a password"}}
	}

	var (
		score    int
		feedback []string
	)
	check := func(ok bool, points int, hint string) {
		if ok {
			score += points
			return
		}
		feedback = append(feedback, hint)
	}

	check(len(pw) >= 8, 25, "At least 8 characters")
	check(strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), 25, "Add uppercase letters")
	check(strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz"), 25, "Add lowercase letters")
	check(strings.ContainsAny(pw, "0123456789"), 25, "Add numbers")
	check(specialRe.MatchString(pw), 10, "Add special characters")

	level := "weak"
	switch {
	case score >= 75:
		level = "strong"
	case score >= 50:
		level = "good"
	case score >= 25:
		level = "fair"
	}
	return Strength{Score: score, Level: level, Feedback: feedback}
}

type Signup struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DateOfBirth     string `json:"date_of_birth"`
	AgreeTerms      bool   `json:"agree_terms"`
	Newsletter      bool   `json:"newsletter"`
}

// ValidationError lists every problem with a signup, in form order.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid signup"
	}
	return e.Problems[0]
}

func (s *Signup) normalize() {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = NormalizePhone(s.Phone)
}

// Validate checks the form; email uniqueness is left to the store.
func (s *Signup) Validate() error {
	s.normalize()

	var p []string
	if s.FirstName == "" {
		p = append(p, "First name is required")
	}
	if s.LastName == "" {
		p = append(p, "Last name is required")
	}
	if s.Email == "" {
		p = append(p, "Email is required")
	} else if !ValidEmail(s.Email) {
		p = append(p, "Invalid email format")
	}
	if err := ValidatePhone(s.Phone); err != nil {
		p = append(p, err.Error())
	}
	if s.Password == "" {
		p = append(p, "Password is required")
	}
	if s.Password != s.ConfirmPassword {
		p = append(p, "Passwords do not match")
	}
	if !s.AgreeTerms {
		p = append(p, "You must agree to the terms")
	}
	if s.Password != "" && PasswordStrength(s.Password).Score < minSignupScore {
		p = append(p, "Password is too weak")
	}

	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}
