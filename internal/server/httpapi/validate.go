package httpapi

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/server/auth"
)

var (
	alphanumeric  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	loginUsername = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	otpCode       = regexp.MustCompile(`^[0-9]{6}$`)
	mobileNumber  = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

var genders = map[string]bool{"male": true, "female": true, "other": true, "prefer_not_to_say": true}

const (
	minPasswordLen = 8
	maxBioLen      = 500
)

// fieldErrors keeps the first message reported for each body field.
type fieldErrors map[string]string

func (f fieldErrors) check(ok bool, field, msg string) bool {
	if ok {
		return true
	}
	key := "[body." + field + "]"
	if _, exists := f[key]; !exists {
		f[key] = msg
	}
	return false
}

func (f fieldErrors) required(v, field, msg string) bool {
	return f.check(strings.TrimSpace(v) != "", field, msg)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &common.ValidationError{Fields: f}
}

func runeLenBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func absoluteURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type registerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (r *registerRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
}

func (r *registerRequest) validate() (time.Time, error) {
	fe := fieldErrors{}

	if fe.required(r.FirstName, "firstName", "First name is required") {
		fe.check(runeLenBetween(r.FirstName, 2, 100), "firstName", "First name must be between 2 and 100 characters")
	}
	if fe.required(r.LastName, "lastName", "Last name is required") {
		fe.check(runeLenBetween(r.LastName, 2, 100), "lastName", "Last name must be between 2 and 100 characters")
	}

	var dob time.Time
	if fe.required(r.DateOfBirth, "dateOfBirth", "Date of birth is required") {
		var ok bool
		dob, ok = parseDate(r.DateOfBirth)
		fe.check(ok, "dateOfBirth", "Date of birth must be a valid date")
	}

	if fe.required(r.Username, "username", "Username is required") &&
		fe.check(runeLenBetween(r.Username, 3, 50), "username", "Username must be between 3 and 50 characters") {
		fe.check(alphanumeric.MatchString(r.Username), "username", "Username must be alphanumeric")
	}
	if fe.required(r.Email, "email", "Email is required") {
		fe.check(common.IsEmail(r.Email), "email", "Email must be valid")
	}
	validPassword(fe, "password", r.Password)

	return dob, fe.err()
}

type loginRequest struct {
	LoginName string `json:"loginName"`
	Password  string `json:"password"`
}

func validLoginName(fe fieldErrors, name string) {
	if fe.required(name, "loginName", "Email or username is required") {
		fe.check(common.IsEmail(name) || loginUsername.MatchString(name), "loginName", "Must be a valid email or username")
	}
}

// validPassword bounds pw by bytes, the unit bcrypt hashes.
func validPassword(fe fieldErrors, field, pw string) {
	if fe.required(pw, field, "Password is required") &&
		fe.check(len(pw) >= minPasswordLen, field, "Password must be at least 8 characters") {
		fe.check(len(pw) <= auth.MaxPasswordBytes, field, "Password must be at most 72 bytes")
	}
}

func validOtp(fe fieldErrors, code string) {
	if fe.required(code, "otp", "OTP is required") {
		fe.check(otpCode.MatchString(code), "otp", "OTP must be a 6 digit code")
	}
}

func (r *loginRequest) validate() error {
	fe := fieldErrors{}
	validLoginName(fe, r.LoginName)
	validPassword(fe, "password", r.Password)
	return fe.err()
}

type confirmRequest struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
}

func (r *confirmRequest) validate() error {
	fe := fieldErrors{}
	if fe.required(r.Email, "email", "Email is required") {
		fe.check(common.IsEmail(r.Email), "email", "Email must be valid")
	}
	validOtp(fe, r.Otp)
	return fe.err()
}

type forgotPasswordRequest struct {
	LoginName string `json:"loginName"`
}

func (r *forgotPasswordRequest) validate() error {
	fe := fieldErrors{}
	validLoginName(fe, r.LoginName)
	return fe.err()
}

type changePasswordRequest struct {
	LoginName   string `json:"loginName"`
	Otp         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (r *changePasswordRequest) validate() error {
	fe := fieldErrors{}
	validLoginName(fe, r.LoginName)
	validOtp(fe, r.Otp)
	validPassword(fe, "newPassword", r.NewPassword)
	return fe.err()
}

type usernameRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
}

func (r *usernameRequest) validate() error {
	fe := fieldErrors{}
	r.Username = strings.TrimSpace(r.Username)
	if fe.required(r.Username, "username", "Username is required") {
		fe.check(runeLenBetween(r.Username, 3, 50), "username", "Username must be between 3 and 50 characters")
	}
	return fe.err()
}

type profileUpdateRequest struct {
	Bio             *string `json:"bio"`
	MobileNumber    *string `json:"mobile_number"`
	Gender          *string `json:"gender"`
	CoverImage      *string `json:"cover_image"`
	ProfileImageURL *string `json:"profile_image_url"`
}

func (r *profileUpdateRequest) validate() error {
	fe := fieldErrors{}
	if r.Bio != nil {
		fe.check(utf8.RuneCountInString(*r.Bio) <= maxBioLen, "bio", "Bio must be less than 500 characters")
	}
	if r.MobileNumber != nil && *r.MobileNumber != "" {
		fe.check(mobileNumber.MatchString(*r.MobileNumber), "mobile_number", "Invalid mobile number format")
	}
	if r.Gender != nil && *r.Gender != "" {
		g := strings.ToLower(*r.Gender)
		if fe.check(genders[g], "gender", "Gender must be one of: male, female, other, prefer_not_to_say") {
			r.Gender = &g
		}
	}
	if r.CoverImage != nil && *r.CoverImage != "" {
		fe.check(absoluteURL(*r.CoverImage), "cover_image", "Invalid image URL format")
	}
	if r.ProfileImageURL != nil && *r.ProfileImageURL != "" {
		fe.check(absoluteURL(*r.ProfileImageURL), "profile_image_url", "Invalid image URL format")
	}
	return fe.err()
}
