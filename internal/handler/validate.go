package handler

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phmobile", func(fl validator.FieldLevel) bool {
		return phMobile.MatchString(stripPhone(fl.Field().String()))
	})
	return v
}()

// phMobile matches a Philippine mobile number once separators are removed.
var phMobile = regexp.MustCompile(`^(09|\+639|639)\d{9}$`)

func stripPhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, s)
}

// normalizePhone rewrites a valid mobile number to the 09XXXXXXXXX form.
func normalizePhone(s string) string {
	p := stripPhone(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(p, "+639"):
		return "0" + p[3:]
	case strings.HasPrefix(p, "639"):
		return "0" + p[2:]
	}
	return p
}

// check runs struct validation and converts failures to a validation error
// with one message per offending field.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request")
	}
	out := apperr.Validation("invalid request")
	for _, fe := range verrs {
		out.AddField(fe.Field(), fieldMessage(fe))
	}
	out.Message = verrs[0].Field() + " " + fieldMessage(verrs[0])
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "phmobile":
		return "must be a PH mobile number such as 0917... or +639..."
	}
	return "is invalid"
}
