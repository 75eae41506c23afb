package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/checkout"
	"github.com/xenking/comeia-checkout/internal/domain/identity"
	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/domain/product"
)

const maxBodySize = 1 << 20

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeFieldErrors(w, status, msg, nil)
}

func writeFieldErrors(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		if len(fields) > 0 {
			e.FieldStart("fields")
			e.ObjStart()
			for k, v := range fields {
				e.FieldStart(k)
				e.Str(v)
			}
			e.ObjEnd()
		}
		e.ObjEnd()
	})
}

// readObject decodes the request body as a JSON object, calling fn per key.
func readObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 512)
	if err := d.Obj(fn); err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}

// fail maps err to an HTTP error response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		payErr   *payment.ValidationError
		formErr  *identity.ValidationError
		limitErr *cart.QuantityLimitError
	)
	switch {
	case errors.Is(err, errBadBody):
		writeError(w, http.StatusBadRequest, "Requisição inválida")
	case errors.As(err, &payErr):
		writeFieldErrors(w, http.StatusBadRequest, "Dados de pagamento inválidos", payErr.Fields)
	case errors.As(err, &formErr):
		writeFieldErrors(w, http.StatusBadRequest, "Dados inválidos", formErr.Fields)
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "Carrinho vazio")
	case errors.Is(err, checkout.ErrMissingUser), errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Não autenticado")
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Email ou senha inválidos")
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email já cadastrado")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "Produto não encontrado")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "Pedido não encontrado")
	case errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item não está no carrinho")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "Quantidade deve ser maior que zero")
	case errors.As(err, &limitErr):
		writeFieldErrors(w, http.StatusUnprocessableEntity, "Quantidade acima do disponível",
			map[string]string{"quantity": limitErr.Error()})
	case errors.Is(err, order.ErrRetryNotAllowed):
		writeError(w, http.StatusConflict, "Pagamento não pode ser refeito")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno")
	}
}
