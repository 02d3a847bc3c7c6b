package engine

import (
	"github.com/songololo/umep-core/internal/accumulate"
	"gonum.org/v1/gonum/mat"
)

// partial is the reduction state of one worker.
type partial struct {
	buf   *accumulate.Buffer
	total int

	// last is the highest-index step seen; lastSample the highest-index step with
	// a sample
	last       *step
	lastSample *step
}

func newPartial(rows, cols int) *partial {
	return &partial{buf: accumulate.New(rows, cols)}
}

func (p *partial) add(st step) error {
	p.total++
	if p.last == nil || st.index > p.last.index {
		p.last = &st
	}
	if st.sample == nil {
		return nil
	}
	if err := p.buf.Fold(st.sample.Ground); err != nil {
		return err
	}
	if p.lastSample == nil || st.index > p.lastSample.index {
		p.lastSample = &st
	}
	return nil
}

func (p *partial) merge(other *partial) error {
	if err := p.buf.Merge(other.buf); err != nil {
		return err
	}
	p.total += other.total
	if other.last != nil && (p.last == nil || other.last.index > p.last.index) {
		p.last = other.last
	}
	if other.lastSample != nil && (p.lastSample == nil || other.lastSample.index > p.lastSample.index) {
		p.lastSample = other.lastSample
	}
	return nil
}

func (p *partial) result() (*Result, error) {
	mean, err := p.buf.Finalize()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Mean:         mean,
		ValidSamples: p.buf.Count(),
		TotalSamples: p.total,
	}
	if p.last != nil {
		res.Last = p.last.ts
	}
	if p.lastSample != nil {
		res.Facade = denseOrNil(p.lastSample.sample.Facade)
		res.VegetationFacade = denseOrNil(p.lastSample.sample.VegetationFacade)
	}
	return res, nil
}

func denseOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
