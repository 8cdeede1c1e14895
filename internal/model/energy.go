package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EnergyClass is a DPE letter rating, A (best) to G (worst).
type EnergyClass string

// Energy classes ordered from worst to best.
const (
	ClassG EnergyClass = "G"
	ClassF EnergyClass = "F"
	ClassE EnergyClass = "E"
	ClassD EnergyClass = "D"
	ClassC EnergyClass = "C"
	ClassB EnergyClass = "B"
	ClassA EnergyClass = "A"
)

// EnergyClasses lists every class in ascending order of performance.
var EnergyClasses = []EnergyClass{ClassG, ClassF, ClassE, ClassD, ClassC, ClassB, ClassA}

// ErrInvalidEnergyClass is returned when a letter is outside A–G.
var ErrInvalidEnergyClass = eris.New("invalid energy class")

// ParseEnergyClass accepts a single letter, case-insensitive, surrounding space ignored.
func ParseEnergyClass(s string) (EnergyClass, error) {
	c := EnergyClass(strings.ToUpper(strings.TrimSpace(s)))
	if c.Index() < 0 {
		return "", eris.Wrapf(ErrInvalidEnergyClass, "%q", s)
	}
	return c, nil
}

// Index returns the position of c in the G<F<E<D<C<B<A ordering (G=0, A=6),
// or -1 for an unknown letter.
func (c EnergyClass) Index() int {
	for i, k := range EnergyClasses {
		if k == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of A–G.
func (c EnergyClass) Valid() bool { return c.Index() >= 0 }

// Delta returns the number of classes gained going from c to target.
// Negative when target is worse than c.
func (c EnergyClass) Delta(target EnergyClass) int {
	return target.Index() - c.Index()
}

// IsPassoire reports whether c is a thermal sieve class (F or G).
func (c EnergyClass) IsPassoire() bool {
	return c == ClassF || c == ClassG
}

// IncomeTier is the means-test bracket used by the primary subsidy.
type IncomeTier string

// Income tiers, lowest income first.
const (
	TierVeryModest   IncomeTier = "very_modest"
	TierModest       IncomeTier = "modest"
	TierIntermediate IncomeTier = "intermediate"
	TierHigh         IncomeTier = "high"
)

// IncomeTiers lists the tiers from lowest to highest income.
var IncomeTiers = []IncomeTier{TierVeryModest, TierModest, TierIntermediate, TierHigh}

// Valid reports whether t is a known tier.
func (t IncomeTier) Valid() bool {
	for _, k := range IncomeTiers {
		if k == t {
			return true
		}
	}
	return false
}
