package payment

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	validatorv10 "github.com/go-playground/validator/v10"
)

var (
	cardNumberRe = regexp.MustCompile(`^\d{4}\s\d{4}\s\d{4}\s\d{4}$`)
	cardExpiryRe = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// PixForm is the data entered for a PIX payment.
type PixForm struct {
	Key string `json:"key" validate:"required,min=5"`
}

// CardForm is the data entered for a credit card payment.
type CardForm struct {
	Number string `json:"number" validate:"required,card_number"`
	Name   string `json:"name" validate:"required,min=2"`
	Expiry string `json:"expiry" validate:"required,card_expiry"`
	CVV    string `json:"cvv" validate:"required,cvv"`
}

// Form carries the payment form submitted at checkout. Only the section
// matching the selected method is read.
type Form struct {
	Pix        *PixForm
	CreditCard *CardForm
}

// ValidationError lists the invalid form fields with a user-facing message
// for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid payment data: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "card_number", cardNumberRe)
	mustRegister(v, "card_expiry", cardExpiryRe)
	mustRegister(v, "cvv", cvvRe)
	return v
}

func mustRegister(v *validatorv10.Validate, tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validatorv10.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

var messages = map[string]string{
	"key.required":          "Chave PIX é obrigatória",
	"key.min":               "Chave PIX deve ter pelo menos 5 caracteres",
	"number.required":       "Número do cartão é obrigatório",
	"number.card_number":    "Número do cartão inválido",
	"name.required":         "Nome no cartão é obrigatório",
	"name.min":              "Nome deve ter pelo menos 2 caracteres",
	"expiry.required":       "Data de validade é obrigatória",
	"expiry.card_expiry":    "Data de validade inválida (MM/AA)",
	"cvv.required":          "CVV é obrigatório",
	"cvv.cvv":               "CVV inválido",
	"paymentMethod":         "Método de pagamento é obrigatório",
	"paymentMethod.data":    "Dados do método de pagamento são obrigatórios",
	"paymentMethod.unknown": "Método de pagamento inválido",
}

// BuildMethod validates the form section for t and returns the resulting
// Method. It returns a *ValidationError when the selection or its data is
// invalid.
func BuildMethod(t MethodType, f Form) (Method, error) {
	switch t {
	case Pix:
		if f.Pix == nil {
			return Method{}, missingData()
		}
		if err := check(f.Pix); err != nil {
			return Method{}, err
		}
		return Method{Type: Pix, Data: PixData{Key: strings.TrimSpace(f.Pix.Key)}}, nil
	case CreditCard:
		if f.CreditCard == nil {
			return Method{}, missingData()
		}
		if err := check(f.CreditCard); err != nil {
			return Method{}, err
		}
		c := f.CreditCard
		return Method{Type: CreditCard, Data: CreditCardData{
			Number: c.Number,
			Name:   strings.TrimSpace(c.Name),
			Expiry: c.Expiry,
			CVV:    c.CVV,
		}}, nil
	case Boleto:
		return Method{Type: Boleto, Data: BoletoData{}}, nil
	case "":
		return Method{}, &ValidationError{Fields: map[string]string{"paymentMethod": messages["paymentMethod"]}}
	default:
		return Method{}, &ValidationError{Fields: map[string]string{"paymentMethod": messages["paymentMethod.unknown"]}}
	}
}

func missingData() error {
	return &ValidationError{Fields: map[string]string{"paymentMethod": messages["paymentMethod.data"]}}
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validatorv10.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		if _, ok := out.Fields[fe.Field()]; ok {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}
