package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float samples between sample rates.
// Equal rates pass samples through untouched.
type Resampler struct {
	inRate  int
	outRate int
	rs      resampling.Resampler
}

// NewResampler creates a mono resampler from inRate to outRate.
func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rates %d -> %d", inRate, outRate)
	}
	r := &Resampler{inRate: inRate, outRate: outRate}
	if inRate == outRate {
		return r, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: failed to create resampler: %w", err)
	}
	r.rs = rs
	return r, nil
}

// Process resamples a chunk. Output length varies with the filter delay.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if r.inRate == r.outRate {
		return samples, nil
	}
	if r.rs == nil {
		return nil, fmt.Errorf("audio: resampler closed")
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := r.rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	res := make([]float32, len(out))
	for i, s := range out {
		res[i] = float32(s)
	}
	return res, nil
}

// Close releases the underlying resampler. Safe to call more than once.
func (r *Resampler) Close() {
	r.rs = nil
}
