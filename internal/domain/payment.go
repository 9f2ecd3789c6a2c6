package domain

// PaymentType is the utility payment plan chosen in the first wizard step.
type PaymentType string

const (
	PaymentMaximum PaymentType = "Максимум"
	PaymentBasic   PaymentType = "Базовый"
	PaymentEconomy PaymentType = "Экономный"
)

func PaymentTypes() []PaymentType {
	return []PaymentType{PaymentMaximum, PaymentBasic, PaymentEconomy}
}

func ParsePaymentType(s string) (PaymentType, error) {
	for _, p := range PaymentTypes() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "payment_type", Message: "unknown payment type " + s}
}
