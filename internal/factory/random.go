package factory

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

// RandomSource yields uniform values in [0, 1).
type RandomSource interface {
	Float64() float64
}

type cryptoRandom struct{}

func (cryptoRandom) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	// 53 bits so the result stays strictly below 1.
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func DefaultRandom() RandomSource { return cryptoRandom{} }

type seededRandom struct{ r *rand.Rand }

// NewSeededRandom is reproducible for a given seed.
func NewSeededRandom(seed uint64) RandomSource {
	return &seededRandom{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRandom) Float64() float64 { return s.r.Float64() }

// FixedRandom replays values in order and repeats the last one once exhausted.
// With no values it behaves like noLuck.
type FixedRandom struct {
	values []float64
	next   int
	draws  int
}

func NewFixedRandom(values ...float64) *FixedRandom {
	return &FixedRandom{values: values}
}

func (f *FixedRandom) Float64() float64 {
	f.draws++
	if len(f.values) == 0 {
		return noLuck{}.Float64()
	}
	i := f.next
	if i >= len(f.values) {
		i = len(f.values) - 1
	} else {
		f.next++
	}
	return f.values[i]
}

// Draws reports how many values have been requested.
func (f *FixedRandom) Draws() int { return f.draws }

// noLuck returns the largest value below 1, so only certain events fire.
type noLuck struct{}

func (noLuck) Float64() float64 { return math.Nextafter(1, 0) }
