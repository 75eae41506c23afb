package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/comeia-checkout/internal/domain/identity"
)

type authedFunc func(w http.ResponseWriter, r *http.Request, u *identity.User)

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

// authed resolves the session user before calling next. Requests without a
// valid session get 401.
func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.identity.CurrentUser(r.Context(), BearerToken(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("user_id", u.ID))
		next(w, r.WithContext(ctx), u)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var email, password string
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(email) == "" {
		fields["email"] = "Email é obrigatório"
	}
	if password == "" {
		fields["password"] = "Senha é obrigatória"
	}
	if len(fields) > 0 {
		fail(w, r, &identity.ValidationError{Fields: fields})
		return
	}

	sess, u, err := h.identity.Login(r.Context(), email, password)
	if err != nil {
		fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("User logged in", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, sess, u) })
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var f identity.RegisterForm
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			f.Name, err = d.Str()
		case "email":
			f.Email, err = d.Str()
		case "password":
			f.Password, err = d.Str()
		case "confirmPassword":
			f.ConfirmPassword, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	sess, u, err := h.identity.Register(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("User registered", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeSession(e, sess, u) })
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context(), BearerToken(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, u *identity.User) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}
