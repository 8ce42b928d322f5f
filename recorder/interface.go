package recorder

import "time"

type Interface interface {
	Start() error
	Stop() (*Sample, error)
	Cancel() error
	Reset() error
	State() State
	Level() float64
	Elapsed() time.Duration
}

// SampleSource is the underlying capture device. Open acquires the
// device and fails fast when access is denied; Read blocks until the
// next buffer of samples is available.
type SampleSource interface {
	Open() error
	Read() ([]int16, error)
	Close() error
}
