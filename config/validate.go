package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"tagtint/colormodel"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// Validator returns the shared validator with tagtint's custom rules registered.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return isHexColor(fl.Field().String())
		})

		_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(fl.Field().String())
			return err == nil && d > 0
		})

		validateInst = v
	})
	return validateInst
}

// Validate checks cfg and reports every failing field.
func Validate(cfg Config) error {
	err := Validator().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// isHexColor accepts the "#rrggbb" form of colormodel.ParseHex. Settings files
// always carry the leading '#'.
func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	_, err := colormodel.ParseHex(s)
	return err == nil
}
