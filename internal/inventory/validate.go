package inventory

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func hostValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report fields by their cluster-file key rather than the Go name.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			tag := strings.Split(f.Tag.Get("ini"), ",")[0]
			if tag == "" || tag == "-" {
				return strings.ToLower(f.Name)
			}
			return tag
		})
	})
	return validate
}

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.reason
}

// validateHost returns the first failing field as a *fieldError.
func validateHost(h Host) error {
	err := hostValidator().Struct(h)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	return &fieldError{field: e.Field(), reason: messageFor(e)}
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required field is missing"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", e.Param(), e.Value())
	default:
		return fmt.Sprintf("failed %q validation", e.Tag())
	}
}
