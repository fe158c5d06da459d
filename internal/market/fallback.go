package market

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

const (
	fallbackMin   = 0.01
	fallbackMax   = 0.99
	fallbackNoise = 0.003
)

// Fallback generates a plausible price series locally. The base level is a
// stable function of the identifier; two slow sine waves and a little noise
// make it move.
type Fallback struct {
	now   func() time.Time
	noise func() float64 // uniform in [-1, 1)
}

func NewFallback() *Fallback {
	return &Fallback{
		now:   time.Now,
		noise: func() float64 { return rand.Float64()*2 - 1 },
	}
}

// base returns a per-identifier level in [0.15, 0.84].
func (f *Fallback) base(externalID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(externalID))
	return float64(h.Sum32()%70)/100 + 0.15
}

func (f *Fallback) Price(externalID string) decimal.Decimal {
	t := float64(f.now().UnixNano()) / float64(time.Second)
	p := f.base(externalID) +
		0.03*math.Sin(t/7) +
		0.01*math.Sin(t/1.3) +
		fallbackNoise*f.noise()
	p = math.Min(fallbackMax, math.Max(fallbackMin, p))
	return decimal.NewFromFloat(p).Round(6)
}
