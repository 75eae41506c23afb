package payment

import (
	"strings"

	"github.com/go-faster/errors"
)

// MethodType identifies a payment method.
type MethodType string

// Supported payment methods.
const (
	Pix        MethodType = "pix"
	CreditCard MethodType = "credit_card"
	Boleto     MethodType = "boleto"
)

// Methods lists the supported payment methods in display order.
var Methods = []MethodType{Pix, CreditCard, Boleto}

// Valid reports whether t is a supported payment method.
func (t MethodType) Valid() bool {
	switch t {
	case Pix, CreditCard, Boleto:
		return true
	default:
		return false
	}
}

// ErrDataMismatch is returned when a method's payload does not belong to its type.
var ErrDataMismatch = errors.New("payment data does not match method type")

// Data is the method-specific payload of a Method. The set of
// implementations is closed: PixData, CreditCardData and BoletoData.
type Data interface {
	methodType() MethodType
}

// PixData carries the PIX key used to pay.
type PixData struct {
	Key string
}

// CreditCardData carries the card details entered at checkout.
type CreditCardData struct {
	Number string
	Name   string
	Expiry string
	CVV    string
}

// BoletoData has no payload; the slip is issued after the order exists.
type BoletoData struct{}

func (PixData) methodType() MethodType        { return Pix }
func (CreditCardData) methodType() MethodType { return CreditCard }
func (BoletoData) methodType() MethodType     { return Boleto }

// Method is a payment method selection together with its payload.
type Method struct {
	Type MethodType
	Data Data
}

// NewMethod pairs t with data, rejecting payloads of another method.
func NewMethod(t MethodType, data Data) (Method, error) {
	m := Method{Type: t, Data: data}
	if err := m.Check(); err != nil {
		return Method{}, err
	}
	return m, nil
}

// Check verifies the structural shape of m: the payload must be present and
// belong to the declared type. Unknown types are left for the processor to
// handle with default behavior.
func (m Method) Check() error {
	if !m.Type.Valid() {
		return nil
	}
	if m.Data == nil {
		return errors.Wrapf(ErrDataMismatch, "%s: missing payload", m.Type)
	}
	if got := m.Data.methodType(); got != m.Type {
		return errors.Wrapf(ErrDataMismatch, "%s payload for %s method", got, m.Type)
	}
	return nil
}

// Redacted returns a copy safe to store or publish: the card number keeps
// only its last four digits and the CVV is dropped.
func (m Method) Redacted() Method {
	card, ok := m.Data.(CreditCardData)
	if !ok {
		return m
	}
	digits := strings.ReplaceAll(card.Number, " ", "")
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	card.Number = "**** **** **** " + digits
	card.CVV = ""
	return Method{Type: m.Type, Data: card}
}

// Result is the outcome of processing a payment. TransactionID is set only
// on success and Error only on failure.
type Result struct {
	Success       bool
	TransactionID string
	Error         string
}

// Approved returns a successful result.
func Approved(transactionID string) Result {
	return Result{Success: true, TransactionID: transactionID}
}

// Declined returns a failed result carrying reason.
func Declined(reason string) Result {
	return Result{Error: reason}
}
