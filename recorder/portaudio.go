package recorder

import (
	"github.com/gordonklaus/portaudio"
)

// portAudioSource captures mono 16-bit samples from the default input
// device. Open and Close bracket the whole portaudio lifetime so that
// a Reset gets a genuinely fresh device handle.
type portAudioSource struct {
	sampleRate   int
	bufferSize   int
	in           []int16
	stream       *portaudio.Stream
	audioRunning bool
}

func NewPortAudioSource(sampleRate, bufferSize int) SampleSource {
	return &portAudioSource{
		sampleRate: sampleRate,
		bufferSize: bufferSize,
	}
}

func (p *portAudioSource) Open() error {
	if !p.audioRunning {
		if err := portaudio.Initialize(); err != nil {
			return err
		}

		p.audioRunning = true
	}

	p.in = make([]int16, p.bufferSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), len(p.in), p.in)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()

		return err
	}

	p.stream = stream

	return nil
}

func (p *portAudioSource) Read() ([]int16, error) {
	if err := p.stream.Read(); err != nil {
		return nil, err
	}

	samples := make([]int16, len(p.in))
	copy(samples, p.in)

	return samples, nil
}

func (p *portAudioSource) Close() error {
	var firstErr error

	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			firstErr = err
		}

		if err := p.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		p.stream = nil
	}

	if p.audioRunning {
		if err := portaudio.Terminate(); err != nil && firstErr == nil {
			firstErr = err
		}

		p.audioRunning = false
	}

	return firstErr
}
