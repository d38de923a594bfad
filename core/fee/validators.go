package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/umoja/academy/core"
)

var (
	paymentMethodTag  = "payment_method"
	paymentMethodText = "payment method must be one of Cash, Bank Transfer, Mobile Money, Cheque, Card"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentMethodTag, paymentMethodValidation)
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)
}

func paymentMethodValidation(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
