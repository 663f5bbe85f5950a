package toy

import (
	"encoding/json"
	"fmt"
	"math"
)

// Plateau lowers the optimizer's learning rate when the driving metric
// stops improving, after the reduce-on-plateau policy: once the metric has
// failed to improve for more than Patience consecutive epochs, the rate is
// multiplied by Factor, floored at MinRate.
type Plateau struct {
	Opt      *SGD
	Factor   float64
	Patience int
	MinRate  float64

	best float64
	bad  int
}

// NewPlateau returns a scheduler bound to the optimizer.
func NewPlateau(opt *SGD, factor float64, patience int, minRate float64) *Plateau {
	return &Plateau{
		Opt:      opt,
		Factor:   factor,
		Patience: patience,
		MinRate:  minRate,
		best:     math.MaxFloat64,
	}
}

// Advance feeds one epoch's driving metric into the schedule.
func (p *Plateau) Advance(metric float64) {
	if metric < p.best {
		p.best = metric
		p.bad = 0
		return
	}
	p.bad++
	if p.bad > p.Patience {
		rate := p.Opt.LR * p.Factor
		if rate < p.MinRate {
			rate = p.MinRate
		}
		p.Opt.LR = rate
		p.bad = 0
	}
}

// Rate returns the optimizer's current learning rate.
func (p *Plateau) Rate() float64 { return p.Opt.LR }

// plateauState is the serialized scheduler internals. The learning rate
// itself lives in the optimizer's state.
type plateauState struct {
	Factor   float64 `json:"factor"`
	Patience int     `json:"patience"`
	MinRate  float64 `json:"min_rate"`
	Best     float64 `json:"best"`
	Bad      int     `json:"bad"`
}

// ExportState serializes the schedule's progress.
func (p *Plateau) ExportState() ([]byte, error) {
	return json.Marshal(plateauState{
		Factor:   p.Factor,
		Patience: p.Patience,
		MinRate:  p.MinRate,
		Best:     p.best,
		Bad:      p.bad,
	})
}

// ImportState restores progress from a blob produced by ExportState.
func (p *Plateau) ImportState(data []byte) error {
	var s plateauState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode scheduler state: %w", err)
	}
	p.Factor = s.Factor
	p.Patience = s.Patience
	p.MinRate = s.MinRate
	p.best = s.Best
	p.bad = s.Bad
	return nil
}
