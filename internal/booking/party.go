package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

// Party is the guest count of a stay.  ChildAges holds one age per child.
type Party struct {
	Adults    int   `json:"adults" validate:"min=1,max=4"`
	Children  int   `json:"children" validate:"min=0,max=2"`
	ChildAges []int `json:"childAges" validate:"omitempty,dive,min=0,max=13"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalizeParty validates p and returns it with ChildAges matching
// Children.  When children are declared but no ages were sent, every age
// defaults to 0; defaulted reports that case so it can be audited.
func normalizeParty(p Party) (out Party, defaulted bool, err error) {
	if err := validate.Struct(p); err != nil {
		return Party{}, false, toValidation(err)
	}
	out = p
	switch {
	case p.Children == 0:
		out.ChildAges = nil
	case len(p.ChildAges) == 0:
		out.ChildAges = make([]int, p.Children)
		defaulted = true
	case len(p.ChildAges) != p.Children:
		verr := apperr.Validation("childAges must have one age per child")
		verr.AddField("childAges", fmt.Sprintf("expected %d ages, got %d", p.Children, len(p.ChildAges)))
		return Party{}, false, verr
	}
	return out, defaulted, nil
}

func toValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	out := apperr.Validation("invalid party")
	for _, fe := range verrs {
		out.AddField(fe.Field(), describe(fe))
	}
	if len(verrs) > 0 {
		out.Message = verrs[0].Field() + " " + describe(verrs[0])
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "required":
		return "is required"
	}
	return "is invalid"
}
