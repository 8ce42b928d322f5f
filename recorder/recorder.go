package recorder

import (
	"errors"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatterjee-sid/voicebot/ring_buffer"
	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
)

const (
	elapsedTickPeriod = time.Millisecond * 250
	levelWindowSize   = 8
)

type State string

const (
	StateReady     State = "READY"
	StateRecording State = "RECORDING"
	StateStopped   State = "STOPPED"
	StateError     State = "ERROR"
)

var (
	ErrPermissionDenied  = errors.New("capture device access denied")
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrNotRecording      = errors.New("not recording")
)

// Sample is one finished capture on disk.
type Sample struct {
	Path      string
	Size      int64
	MIMEType  string
	CreatedAt time.Time
}

type recorderImpl struct {
	fileSys    afero.Fs
	source     SampleSource
	sampleRate int
	outputDir  string

	// opLock serializes start/stop/cancel/reset; overlapping callers
	// queue behind the in-flight operation rather than being rejected.
	opLock sync.Mutex

	state   atomic.Value // State
	level   atomic.Uint64
	elapsed atomic.Int64

	currentPath string
	lastPath    string
	startedAt   time.Time
	stopC       chan struct{}
	doneC       chan struct{}
}

type Config struct {
	FileSys    afero.Fs
	Source     SampleSource
	SampleRate int
	OutputDir  string
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Source == nil {
		return nil, fmt.Errorf("source is nil")
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	r := &recorderImpl{
		fileSys:    cfg.FileSys,
		source:     cfg.Source,
		sampleRate: sampleRate,
		outputDir:  outputDir,
	}

	r.state.Store(StateReady)

	return r, nil
}

func (r *recorderImpl) State() State {
	return r.state.Load().(State)
}

func (r *recorderImpl) Level() float64 {
	return math.Float64frombits(r.level.Load())
}

func (r *recorderImpl) Elapsed() time.Duration {
	return time.Duration(r.elapsed.Load())
}

func (r *recorderImpl) Start() error {
	r.opLock.Lock()
	defer r.opLock.Unlock()

	if r.State() == StateRecording {
		return ErrCaptureInProgress
	}

	// a previous device failure leaves stale state behind; clear it
	// so the failure does not lock out future attempts
	if r.State() == StateError {
		_ = r.source.Close()
	}

	if err := r.source.Open(); err != nil {
		r.state.Store(StateError)

		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	waveFilename := filepath.Join(r.outputDir, "rec"+strconv.Itoa(int(time.Now().Unix()))+".wav")

	waveFile, err := r.fileSys.Create(waveFilename)
	if err != nil {
		_ = r.source.Close()
		r.state.Store(StateError)

		return err
	}

	param := wave.WriterParam{
		Out:           waveFile,
		Channel:       1,
		SampleRate:    r.sampleRate,
		BitsPerSample: 16,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		_ = waveFile.Close()
		_ = r.source.Close()
		r.state.Store(StateError)

		return err
	}

	r.currentPath = waveFilename
	r.startedAt = time.Now()
	r.elapsed.Store(0)
	r.level.Store(0)
	r.stopC = make(chan struct{})
	r.doneC = make(chan struct{})

	r.state.Store(StateRecording)

	// the goroutines get their own copies of the cycle's channels: a
	// later Start may reassign the fields while an errored capture is
	// still unwinding
	go r.captureLoop(waveWriter, r.stopC, r.doneC)
	go r.elapsedLoop(r.startedAt, r.doneC)

	return nil
}

// captureLoop copies buffers from the device into the wave file until
// stopped, feeding the amplitude meter as a side channel.
func (r *recorderImpl) captureLoop(waveWriter *wave.Writer, stopC <-chan struct{}, doneC chan struct{}) {
	defer close(doneC)
	defer waveWriter.Close()

	meter := newFluxMeter()
	window := ring_buffer.New(levelWindowSize)

	for {
		select {
		case <-stopC:
			return
		default:
		}

		in, err := r.source.Read()
		if err != nil {
			log.Printf("capture device read failed: %v", err)
			r.state.Store(StateError)

			return
		}

		if _, err = waveWriter.WriteSample16(in); err != nil {
			log.Printf("writing wave sample failed: %v", err)
			r.state.Store(StateError)

			return
		}

		window.Add(meter.Flux(in))
		r.level.Store(math.Float64bits(window.Average()))
	}
}

func (r *recorderImpl) elapsedLoop(startedAt time.Time, doneC <-chan struct{}) {
	ticker := time.NewTicker(elapsedTickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-doneC:
			return
		case <-ticker.C:
			r.elapsed.Store(int64(time.Since(startedAt)))
		}
	}
}

func (r *recorderImpl) Stop() (*Sample, error) {
	r.opLock.Lock()
	defer r.opLock.Unlock()

	if r.State() != StateRecording {
		// tolerate a desynchronized device: hand back the last known
		// capture when one exists, callers verify before trusting it
		if r.lastPath != "" {
			return r.sampleAt(r.lastPath)
		}

		return nil, ErrNotRecording
	}

	r.haltCapture()

	if err := r.source.Close(); err != nil {
		log.Printf("error while closing capture device: %v", err)
	}

	// the capture goroutine may have failed between the state check
	// and the halt; its Error state wins
	if r.State() == StateError {
		if r.currentPath != "" {
			r.lastPath = r.currentPath

			return r.sampleAt(r.currentPath)
		}

		return nil, ErrNotRecording
	}

	r.state.Store(StateStopped)
	r.lastPath = r.currentPath

	return r.sampleAt(r.currentPath)
}

func (r *recorderImpl) Cancel() error {
	r.opLock.Lock()
	defer r.opLock.Unlock()

	if r.State() == StateRecording {
		r.haltCapture()
	}

	// a capture that died mid-cycle still holds the device open, so
	// close unconditionally before returning to Ready
	if err := r.source.Close(); err != nil {
		log.Printf("error while closing capture device: %v", err)
	}

	if r.currentPath != "" {
		if err := r.fileSys.Remove(r.currentPath); err != nil {
			log.Printf("error removing cancelled capture: %v", err)
		}

		r.currentPath = ""
	}

	r.lastPath = ""
	r.state.Store(StateReady)

	return nil
}

func (r *recorderImpl) Reset() error {
	r.opLock.Lock()
	defer r.opLock.Unlock()

	if r.State() == StateRecording {
		r.haltCapture()
	}

	if err := r.source.Close(); err != nil {
		log.Printf("error while closing capture device: %v", err)
	}

	r.currentPath = ""
	r.lastPath = ""
	r.elapsed.Store(0)
	r.level.Store(0)
	r.state.Store(StateReady)

	return nil
}

// haltCapture signals the capture goroutine and waits for it to put
// down the wave writer. Callers hold opLock.
func (r *recorderImpl) haltCapture() {
	if r.stopC == nil {
		return
	}

	select {
	case <-r.stopC:
	default:
		close(r.stopC)
	}

	<-r.doneC
	r.stopC = nil
}

func (r *recorderImpl) sampleAt(path string) (*Sample, error) {
	sample := &Sample{
		Path:      path,
		MIMEType:  "audio/wav",
		CreatedAt: r.startedAt,
	}

	if info, err := r.fileSys.Stat(path); err == nil {
		sample.Size = info.Size()
	}

	return sample, nil
}
