// Package validation turns validator/v10 errors from gin form binding into
// per-field messages for re-rendered forms.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FormError is the key used for errors that are not tied to a single field.
const FormError = "__all__"

// Errors maps a form field name to its message.
type Errors map[string]string

// Add records msg for field unless the field already has one.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Any reports whether at least one error was recorded.
func (e Errors) Any() bool { return len(e) > 0 }

var registerOnce sync.Once

// Register makes gin's validator report fields by their `form` tag names
// and installs the custom date and username rules. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(formTagName)
		_ = v.RegisterValidation("ymd", validYMD)
		_ = v.RegisterValidation("notfuture", notFuture)
		_ = v.RegisterValidation("username", validUsername)
	})
}

func formTagName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// FromBinding converts the error returned by c.ShouldBind. Errors that are
// not validation failures are reported under FormError.
func FromBinding(err error) Errors {
	out := Errors{}
	if err == nil {
		return out
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out.Add(FormError, "Invalid form submission.")
		return out
	}
	for _, fe := range ve {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "eqfield":
		return "The two password fields didn't match."
	case "ymd":
		return "Enter a valid date (YYYY-MM-DD)."
	case "notfuture":
		return "Date cannot be in the future."
	case "username":
		return "Enter a valid username. Letters, digits and @/./+/-/_ only."
	default:
		return "Enter a valid value."
	}
}
