// Package validation wraps go-playground/validator with the custom rules task inputs use.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

var (
	// hashtagPattern matches a hashtag body without the leading '#'.
	hashtagPattern   = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
	namespacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		if err := v.RegisterValidation("hashtag", validateHashtag); err != nil {
			panic(fmt.Sprintf("register hashtag validation: %v", err))
		}
		if err := v.RegisterValidation("blob_uri", validateBlobURI); err != nil {
			panic(fmt.Sprintf("register blob_uri validation: %v", err))
		}
		if err := v.RegisterValidation("namespace", validateNamespace); err != nil {
			panic(fmt.Sprintf("register namespace validation: %v", err))
		}
		instance = v
	})
	return instance
}

func validateHashtag(fl validator.FieldLevel) bool {
	return hashtagPattern.MatchString(fl.Field().String())
}

func validateNamespace(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return namespacePattern.MatchString(s) && !strings.Contains(s, "..")
}

func validateBlobURI(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "blob:///")
}

// Struct validates v and reports every failing field as one ValidationError.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.InternalError("validation failed", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return apperrors.ValidationError(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "hashtag":
		return fmt.Sprintf("%s must contain only letters, digits and underscores, got %q", fe.Field(), fe.Value())
	case "namespace":
		return fmt.Sprintf("%s must be letters, digits, '.', '_' or '-', got %q", fe.Field(), fe.Value())
	case "blob_uri":
		return fmt.Sprintf("%s must be a blob:/// URI, got %q", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
