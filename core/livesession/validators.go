package livesession

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/meeting"
)

var (
	providerTag  = "provider"
	providerText = "unknown video provider"

	wireTimeTag  = "wiretime"
	wireTimeText = "invalid date/time, use RFC 3339 or YYYY-MM-DDTHH:MM"
)

// InitValidators registers the live session validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(providerTag, providerValidation)
	core.RegisterCustomTranslation(validate, translator, providerTag, providerText)

	_ = validate.RegisterValidation(wireTimeTag, wireTimeValidation)
	core.RegisterCustomTranslation(validate, translator, wireTimeTag, wireTimeText)
}

func providerValidation(fl validator.FieldLevel) bool {
	return meeting.Provider(fl.Field().String()).Valid()
}

// wireTimeValidation only checks the format; the time zone is applied later.
func wireTimeValidation(fl validator.FieldLevel) bool {
	_, err := ParseWireTime(fl.Field().String(), nil)
	return err == nil
}
