// Package branch implements a PC-indexed branch predictor: a 2-bit
// saturating-counter bimodal direction predictor backed by a branch
// target buffer, offered to decode as an optional informational
// collaborator. Its prediction never gates correctness — actual
// misprediction is still detected at the execute pipe — it only
// populates an inst's PredictedTaken/PredictedTarget fields and tracks
// accuracy statistics.
package branch

// Config holds the predictor's table sizes.
type Config struct {
	// BHTSize is the number of entries in the Branch History Table. Must
	// be a power of 2.
	BHTSize uint32
	// BTBSize is the number of entries in the Branch Target Buffer. Must
	// be a power of 2.
	BTBSize uint32
}

// DefaultConfig returns a 1024-entry BHT, 256-entry BTB configuration.
func DefaultConfig() Config {
	return Config{BHTSize: 1024, BTBSize: 256}
}

// Stats holds cumulative predictor accuracy counters.
type Stats struct {
	Predictions    uint64
	Correct        uint64
	Mispredictions uint64
	BTBHits        uint64
	BTBMisses      uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Stats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s Stats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction is a single direction/target prediction for a PC.
type Prediction struct {
	Taken       bool
	Target      uint64
	TargetKnown bool
}

type btbEntry struct {
	pc     uint64
	target uint64
}

// Predictor is a 2-bit saturating-counter bimodal predictor with a BTB,
// indexed by the branch-aligned low bits of the PC.
type Predictor struct {
	bht      []uint8
	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats Stats
}

// New returns a Predictor sized per cfg, with every BHT entry
// initialized weakly-taken.
func New(cfg Config) *Predictor {
	bhtSize := cfg.BHTSize
	if bhtSize == 0 {
		bhtSize = 1024
	}
	btbSize := cfg.BTBSize
	if btbSize == 0 {
		btbSize = 256
	}

	p := &Predictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}
	for i := range p.bht {
		p.bht[i] = 2
	}
	return p
}

func (p *Predictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(p.bhtSize-1))
}

func (p *Predictor) btbIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(p.btbSize-1))
}

// Predict returns a direction/target prediction for pc.
func (p *Predictor) Predict(pc uint64) Prediction {
	pred := Prediction{}

	bhtIdx := p.bhtIndex(pc)
	counter := p.bht[bhtIdx]
	pred.Taken = counter >= 2

	btbIdx := p.btbIndex(pc)
	if p.btbValid[btbIdx] && p.btb[btbIdx].pc == pc {
		pred.Target = p.btb[btbIdx].target
		pred.TargetKnown = true
		p.stats.BTBHits++
	} else {
		p.stats.BTBMisses++
	}

	p.stats.Predictions++
	return pred
}

// Update records the actual outcome of the branch at pc, updating the
// saturating counter and, if taken, the BTB.
func (p *Predictor) Update(pc uint64, taken bool, target uint64) {
	bhtIdx := p.bhtIndex(pc)
	counter := p.bht[bhtIdx]

	predicted := counter >= 2
	if predicted == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			p.bht[bhtIdx] = counter + 1
		}
	} else if counter > 0 {
		p.bht[bhtIdx] = counter - 1
	}

	if taken {
		btbIdx := p.btbIndex(pc)
		p.btb[btbIdx] = btbEntry{pc: pc, target: target}
		p.btbValid[btbIdx] = true
	}
}

// Stats returns the predictor's cumulative accuracy counters.
func (p *Predictor) Stats() Stats { return p.stats }

// Reset clears all predictor state and statistics.
func (p *Predictor) Reset() {
	for i := range p.bht {
		p.bht[i] = 2
	}
	for i := range p.btbValid {
		p.btbValid[i] = false
	}
	p.stats = Stats{}
}
