package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// Provenance tells whether a figure was read from the chain or derived locally
type Provenance string

const (
	Authoritative Provenance = "authoritative"
	Estimated     Provenance = "estimated"
)

// Figure is a resolved amount together with the strategy that produced it
type Figure struct {
	Value      *big.Int   `json:"value"`
	Provenance Provenance `json:"provenance"`
	Source     string     `json:"source"`
}

func (f Figure) IsAuthoritative() bool {
	return f.Provenance == Authoritative
}

// Strategy is one way of obtaining a figure
type Strategy struct {
	Name       string
	Provenance Provenance
	Read       func(ctx context.Context) (*big.Int, error)
}

var ErrNoStrategy = errors.New("no read strategy succeeded")

// Resolve evaluates strategies in order and returns the first successful one. Strategies are
// never run concurrently so a later fallback never races an earlier read.
func Resolve(ctx context.Context, strategies []Strategy) (Figure, error) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return Figure{}, err
		}
		v, err := s.Read(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		return Figure{Value: v, Provenance: s.Provenance, Source: s.Name}, nil
	}
	return Figure{}, fmt.Errorf("%w: %w", ErrNoStrategy, errors.Join(errs...))
}

// Constant is a fallback strategy that always yields v
func Constant(name string, v *big.Int) Strategy {
	return Strategy{
		Name:       name,
		Provenance: Estimated,
		Read: func(ctx context.Context) (*big.Int, error) {
			return new(big.Int).Set(v), nil
		},
	}
}
