package account

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxUsernameLen = 150
	maxNameLen     = 150
	minPasswordLen = 8
	// bcrypt only considers the first 72 bytes.
	maxPasswordBytes = 72
)

// ValidationErrors maps a field name to the constraints it violated.
type ValidationErrors map[string][]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (v ValidationErrors) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Registration is the payload for creating a user.
type Registration struct {
	Username  string `json:"username" form:"username"`
	Password  string `json:"password" form:"password"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
}

// Validate checks every field and returns ValidationErrors, or nil.
func (r Registration) Validate() error {
	verr := ValidationErrors{}
	validateUsername(verr, r.Username)
	validateName(verr, "first_name", r.FirstName)
	validateName(verr, "last_name", r.LastName)
	validatePassword(verr, r.Password, r.Username)
	return verr.orNil()
}

// Credentials is the payload for logging in.
type Credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate checks the shape of the credentials, not their correctness.
func (c Credentials) Validate() error {
	verr := ValidationErrors{}
	validateUsername(verr, c.Username)
	if c.Password == "" {
		verr.add("password", "This field may not be blank.")
	}
	return verr.orNil()
}

// ValidUsername reports whether s is 1-150 letters, digits or @.+-_ characters.
func ValidUsername(s string) bool {
	verr := ValidationErrors{}
	validateUsername(verr, s)
	return len(verr) == 0
}

func validateUsername(verr ValidationErrors, s string) {
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		verr.add("username", "This field may not be blank.")
		return
	case n > maxUsernameLen:
		verr.add("username", "Ensure this field has no more than 150 characters.")
	}

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		verr.add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		return
	}
}

func validateName(verr ValidationErrors, field, s string) {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	switch {
	case n == 0:
		verr.add(field, "This field may not be blank.")
	case utf8.RuneCountInString(s) > maxNameLen:
		verr.add(field, "Ensure this field has no more than 150 characters.")
	}
}

func validatePassword(verr ValidationErrors, password, username string) {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLen {
		verr.add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > maxPasswordBytes {
		verr.add("password", "Ensure this field has no more than 72 bytes.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		verr.add("password", "This password is entirely numeric.")
	}
	if username != "" && strings.EqualFold(password, username) {
		verr.add("password", "The password is too similar to the username.")
	}
}
