package common

import "regexp"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s looks like an email address. A login name that
// is an email is looked up by email, anything else by username.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}
