package payment

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultErrorMessage is reported for failures of unknown payment methods.
const DefaultErrorMessage = "Erro no processamento"

// Profile describes how a payment method behaves in the simulation.
type Profile struct {
	FailureRate   float64
	MinProcessing time.Duration
	MaxProcessing time.Duration
	Errors        []string
}

var profiles = map[MethodType]Profile{
	Pix: {
		FailureRate:   0.05,
		MinProcessing: 1000 * time.Millisecond,
		MaxProcessing: 3000 * time.Millisecond,
		Errors:        []string{"Chave PIX inválida", "Conta bloqueada", "Limite diário excedido"},
	},
	CreditCard: {
		FailureRate:   0.15,
		MinProcessing: 2000 * time.Millisecond,
		MaxProcessing: 5000 * time.Millisecond,
		Errors:        []string{"Cartão expirado", "Saldo insuficiente", "Transação negada pelo banco", "CVV inválido"},
	},
	Boleto: {
		FailureRate:   0.02,
		MinProcessing: 1000 * time.Millisecond,
		MaxProcessing: 2000 * time.Millisecond,
		Errors:        []string{"Dados do boleto inválidos", "Banco indisponível"},
	},
}

var defaultProfile = Profile{
	FailureRate:   0.1,
	MinProcessing: 1000 * time.Millisecond,
	MaxProcessing: 3000 * time.Millisecond,
	Errors:        []string{DefaultErrorMessage},
}

// ProfileOf returns the simulation profile for t. Unknown methods get a
// conservative default instead of an error.
func ProfileOf(t MethodType) Profile {
	p, ok := profiles[t]
	if !ok {
		p = defaultProfile
	}
	p.Errors = append([]string(nil), p.Errors...)
	return p
}

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource returns a goroutine-safe source backed by the runtime's
// random generator.
func DefaultSource() Source { return globalSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSeededSource returns a deterministic source. Two sources created with
// the same seed yield the same sequence.
func NewSeededSource(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Outcome is a single simulated draw for a payment.
type Outcome struct {
	WillFail       bool
	ProcessingTime time.Duration
}

// Engine draws payment outcomes from per-method profiles.
type Engine struct {
	src Source
}

// NewEngine creates an Engine drawing from src. A nil src uses DefaultSource.
func NewEngine(src Source) *Engine {
	if src == nil {
		src = DefaultSource()
	}
	return &Engine{src: src}
}

// DrawOutcome makes two independent draws: one against the failure rate of t
// and one for the processing time within its range.
func (e *Engine) DrawOutcome(t MethodType) Outcome {
	p := ProfileOf(t)
	willFail := e.src.Float64() < p.FailureRate
	span := p.MaxProcessing - p.MinProcessing
	return Outcome{
		WillFail:       willFail,
		ProcessingTime: p.MinProcessing + time.Duration(e.src.Float64()*float64(span)),
	}
}

// ErrorMessage picks a failure reason uniformly from the pool of t.
func (e *Engine) ErrorMessage(t MethodType) string {
	pool := ProfileOf(t).Errors
	idx := int(e.src.Float64() * float64(len(pool)))
	if idx >= len(pool) {
		idx = len(pool) - 1
	}
	return pool[idx]
}
