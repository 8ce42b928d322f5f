package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/chatterjee-sid/voicebot/clients/classifier"
	"github.com/chatterjee-sid/voicebot/clients/device"
	"github.com/chatterjee-sid/voicebot/recorder"
	"github.com/spf13/afero"
)

// Phase is where the current command cycle stands. Failures are
// per-cycle: every path lands back in IDLE.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseCapturing   Phase = "CAPTURING"
	PhaseClassifying Phase = "CLASSIFYING"
	PhaseDispatching Phase = "DISPATCHING"
)

var (
	ErrBusy         = errors.New("a command cycle is already in flight")
	ErrNotCapturing = errors.New("no capture in progress")
	ErrSendFailed   = errors.New("device rejected the command")
)

// Outcome is the user-facing result of one cycle.
type Outcome struct {
	Label      classifier.Label
	Code       string
	Dispatched bool
	Err        error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return "Error: " + o.Err.Error()
	}

	return string(o.Label)
}

type pipelineImpl struct {
	fileSys          afero.Fs
	rec              recorder.Interface
	classifierClient classifier.Interface
	session          device.Interface

	// opLock serializes begin/abort/commit; phase is readable without it
	opLock sync.Mutex
	phase  atomic.Value
}

type Config struct {
	FileSys    afero.Fs
	Recorder   recorder.Interface
	Classifier classifier.Interface
	// Session may be nil: a cycle without a connected device still
	// records and classifies, it just has nowhere to dispatch.
	Session device.Interface
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Recorder == nil {
		return nil, fmt.Errorf("recorder is nil")
	}

	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}

	p := &pipelineImpl{
		fileSys:          cfg.FileSys,
		rec:              cfg.Recorder,
		classifierClient: cfg.Classifier,
		session:          cfg.Session,
	}

	p.phase.Store(PhaseIdle)

	return p, nil
}

func (p *pipelineImpl) Phase() Phase {
	return p.phase.Load().(Phase)
}

// Begin starts a new cycle by opening the capture. Rejected while any
// cycle is in flight.
func (p *pipelineImpl) Begin() error {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	if p.Phase() != PhaseIdle {
		return ErrBusy
	}

	if err := p.rec.Start(); err != nil {
		return err
	}

	p.phase.Store(PhaseCapturing)

	return nil
}

// Abort discards the in-progress capture and returns to idle.
func (p *pipelineImpl) Abort() error {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	if p.Phase() != PhaseCapturing {
		return ErrNotCapturing
	}

	err := p.rec.Cancel()

	p.phase.Store(PhaseIdle)

	return err
}

// Commit finishes the cycle: stop the capture, classify the sample,
// dispatch the label to the device session when one is connected. The
// sample file is deleted once consumed.
func (p *pipelineImpl) Commit(ctx context.Context) Outcome {
	p.opLock.Lock()
	defer p.opLock.Unlock()

	defer p.phase.Store(PhaseIdle)

	if p.Phase() != PhaseCapturing {
		return Outcome{Label: classifier.LabelUnknown, Err: ErrNotCapturing}
	}

	sample, err := p.rec.Stop()
	if err != nil {
		return Outcome{Label: classifier.LabelUnknown, Err: err}
	}

	// Stop hands back a best-effort path on a desynchronized device,
	// so never trust it unverified
	if err := recorder.Verify(p.fileSys, sample); err != nil {
		return Outcome{Label: classifier.LabelUnknown, Err: err}
	}

	p.phase.Store(PhaseClassifying)

	label, err := p.classifierClient.Classify(ctx, sample)

	if removeErr := p.fileSys.Remove(sample.Path); removeErr != nil {
		log.Printf("error removing consumed sample: %v", removeErr)
	}

	if err != nil {
		return Outcome{Label: classifier.LabelUnknown, Err: err}
	}

	p.phase.Store(PhaseDispatching)

	outcome := Outcome{Label: label}

	if p.session != nil && p.session.Connected() {
		outcome.Code = device.CommandCode(string(label))
		outcome.Dispatched = p.session.SendCommand(string(label))

		if !outcome.Dispatched {
			outcome.Err = ErrSendFailed
		}
	}

	return outcome
}
