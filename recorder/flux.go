package recorder

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// fluxMeter measures how much the frequency spectrum of the incoming
// audio changes between consecutive buffers. The rectified flux tracks
// speech onset well enough to drive a live level indicator.
type fluxMeter struct {
	prevSpectrum []float64
}

func newFluxMeter() *fluxMeter {
	return &fluxMeter{}
}

func (f *fluxMeter) Flux(samples []int16) float64 {
	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / math.MaxInt16
	}

	spectrum := fft.FFTReal(input)

	half := len(spectrum) / 2
	magnitudes := make([]float64, half)

	// a buffer size change makes the previous spectrum incomparable
	if len(f.prevSpectrum) != half {
		f.prevSpectrum = nil
	}

	flux := 0.0

	for i := 0; i < half; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])

		if f.prevSpectrum != nil {
			if diff := magnitudes[i] - f.prevSpectrum[i]; diff > 0 {
				flux += diff
			}
		}
	}

	f.prevSpectrum = magnitudes

	return flux
}
