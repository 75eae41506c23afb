package identity

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	validatorv10 "github.com/go-playground/validator/v10"
)

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,mixed_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ValidationError lists invalid form fields with user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid registration: " + strings.Join(keys, ", ")
}

var messages = map[string]string{
	"name.required":            "Nome é obrigatório",
	"name.min":                 "Nome deve ter pelo menos 2 caracteres",
	"email.required":           "Email é obrigatório",
	"email.email":              "Email inválido",
	"password.required":        "Senha é obrigatória",
	"password.min":             "Senha deve ter pelo menos 6 caracteres",
	"password.mixed_password":  "Senha deve conter pelo menos uma letra minúscula, uma maiúscula e um número",
	"confirmPassword.required": "Confirmação de senha é obrigatória",
	"confirmPassword.eqfield":  "Senhas não coincidem",
}

var validate = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	if err := v.RegisterValidation("mixed_password", mixedPassword); err != nil {
		panic(err)
	}
	return v
}

// mixedPassword requires a lowercase letter, an uppercase letter and a digit.
func mixedPassword(fl validatorv10.FieldLevel) bool {
	var lower, upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// Validate checks the form, returning a *ValidationError on failure.
func (f RegisterForm) Validate() error {
	err := validate.Struct(f)
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
