package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"laundry-pickup/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()/-]{5,19}$`)
)

// GetValidator returns the shared validator with the custom tags registered:
// phone, hhmm ("15:04") and isodate ("2006-01-02").
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(models.ClockLayout, fl.Field().String())
			return err == nil
		})
		mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(models.DateLayout, fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateStruct validates s and wraps failures in models.ErrValidation with a
// readable field list.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: invalid %s", models.ErrValidation, strings.Join(fields, ", "))
}

// EchoValidator plugs the shared validator into echo.Context.Validate.
type EchoValidator struct{}

func (EchoValidator) Validate(i any) error {
	return ValidateStruct(i)
}
