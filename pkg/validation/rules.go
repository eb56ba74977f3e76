package validation

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the only accepted date input format.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func validUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func validYMD(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := ParseDate(s)
	return err == nil
}

// notFuture accepts empty or unparseable values; pair it with ymd.
func notFuture(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := ParseDate(s)
	if err != nil {
		return true
	}
	return !d.After(time.Now().UTC())
}
