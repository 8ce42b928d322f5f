package recorder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

type fakeSource struct {
	mu      sync.Mutex
	openErr error
	readErr error
	opens   int
	closes  int
	open    bool
}

func (f *fakeSource) failReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readErr = err
}

func (f *fakeSource) isOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.open
}

func (f *fakeSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return f.openErr
	}

	f.opens++
	f.open = true

	return nil
}

func (f *fakeSource) Read() ([]int16, error) {
	f.mu.Lock()
	readErr := f.readErr
	f.mu.Unlock()

	if readErr != nil {
		return nil, readErr
	}

	time.Sleep(time.Millisecond * 5)

	samples := make([]int16, 512)
	for i := range samples {
		samples[i] = int16(i % 128)
	}

	return samples, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes++
	f.open = false

	return nil
}

func newTestRecorder(t *testing.T, source SampleSource) (Interface, afero.Fs) {
	t.Helper()

	fileSys := afero.NewMemMapFs()

	rec, err := New(&Config{
		FileSys:    fileSys,
		Source:     source,
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("error with recorder.New: %v", err)
	}

	return rec, fileSys
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakeSource{})

	sample, err := rec.Stop()
	if !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}

	if sample != nil {
		t.Errorf("expected no sample, got %+v", sample)
	}
}

func TestRecorder_CaptureCycle(t *testing.T) {
	rec, fileSys := newTestRecorder(t, &fakeSource{})

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting capture: %v", err)
	}

	if state := rec.State(); state != StateRecording {
		t.Errorf("expected RECORDING, got %s", state)
	}

	if err := rec.Start(); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("expected ErrCaptureInProgress, got %v", err)
	}

	// let a few buffers land in the file
	time.Sleep(time.Millisecond * 50)

	sample, err := rec.Stop()
	if err != nil {
		t.Fatalf("error stopping capture: %v", err)
	}

	if state := rec.State(); state != StateStopped {
		t.Errorf("expected STOPPED, got %s", state)
	}

	if sample.MIMEType != "audio/wav" {
		t.Errorf("expected audio/wav, got %s", sample.MIMEType)
	}

	if sample.Size == 0 {
		t.Errorf("expected a non-empty sample file")
	}

	if err := Verify(fileSys, sample); err != nil {
		t.Errorf("expected sample to verify, got %v", err)
	}
}

func TestRecorder_StopAfterStopReturnsLastKnownPath(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakeSource{})

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting capture: %v", err)
	}

	time.Sleep(time.Millisecond * 20)

	first, err := rec.Stop()
	if err != nil {
		t.Fatalf("error stopping capture: %v", err)
	}

	second, err := rec.Stop()
	if err != nil {
		t.Fatalf("expected best-effort sample, got %v", err)
	}

	if second.Path != first.Path {
		t.Errorf("expected last known path %s, got %s", first.Path, second.Path)
	}
}

func TestRecorder_PermissionDenied(t *testing.T) {
	source := &fakeSource{openErr: errors.New("device busy")}
	rec, _ := newTestRecorder(t, source)

	err := rec.Start()
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if state := rec.State(); state != StateError {
		t.Errorf("expected ERROR, got %s", state)
	}

	// a failed start must not lock out the next attempt
	source.mu.Lock()
	source.openErr = nil
	source.mu.Unlock()

	if err := rec.Start(); err != nil {
		t.Errorf("expected recovery start to succeed, got %v", err)
	}

	if _, err := rec.Stop(); err != nil {
		t.Errorf("error stopping recovered capture: %v", err)
	}
}

func TestRecorder_DeviceFailureDuringCapture(t *testing.T) {
	source := &fakeSource{}
	rec, _ := newTestRecorder(t, source)

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting capture: %v", err)
	}

	source.failReads(errors.New("stream died"))

	deadline := time.Now().Add(time.Second)
	for rec.State() != StateError {
		if time.Now().After(deadline) {
			t.Fatalf("recorder never entered ERROR after device failure")
		}

		time.Sleep(time.Millisecond * 5)
	}

	if err := rec.Reset(); err != nil {
		t.Fatalf("error resetting recorder: %v", err)
	}

	if state := rec.State(); state != StateReady {
		t.Errorf("expected READY after reset, got %s", state)
	}
}

func TestRecorder_CancelDeletesFile(t *testing.T) {
	rec, fileSys := newTestRecorder(t, &fakeSource{})

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting capture: %v", err)
	}

	time.Sleep(time.Millisecond * 20)

	if err := rec.Cancel(); err != nil {
		t.Fatalf("error cancelling capture: %v", err)
	}

	if state := rec.State(); state != StateReady {
		t.Errorf("expected READY after cancel, got %s", state)
	}

	files, err := afero.ReadDir(fileSys, ".")
	if err != nil {
		t.Fatalf("error listing files: %v", err)
	}

	for _, f := range files {
		t.Errorf("expected no leftover files, found %s", f.Name())
	}
}

func TestVerify_RejectsEmptyFile(t *testing.T) {
	fileSys := afero.NewMemMapFs()

	if err := afero.WriteFile(fileSys, "empty.wav", nil, 0644); err != nil {
		t.Fatalf("error writing file: %v", err)
	}

	sample := &Sample{Path: "empty.wav", MIMEType: "audio/wav"}

	if err := Verify(fileSys, sample); err == nil {
		t.Errorf("expected empty file to fail verification")
	}
}

func TestVerify_RejectsMissingFile(t *testing.T) {
	fileSys := afero.NewMemMapFs()

	sample := &Sample{Path: "gone.wav", MIMEType: "audio/wav"}

	if err := Verify(fileSys, sample); err == nil {
		t.Errorf("expected missing file to fail verification")
	}
}

func TestRecorder_CancelAfterDeviceFailureClosesDevice(t *testing.T) {
	source := &fakeSource{}
	rec, _ := newTestRecorder(t, source)

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting capture: %v", err)
	}

	source.failReads(errors.New("stream died"))

	deadline := time.Now().Add(time.Second)
	for rec.State() != StateError {
		if time.Now().After(deadline) {
			t.Fatalf("recorder never entered ERROR after device failure")
		}

		time.Sleep(time.Millisecond * 5)
	}

	if err := rec.Cancel(); err != nil {
		t.Fatalf("error cancelling capture: %v", err)
	}

	if state := rec.State(); state != StateReady {
		t.Errorf("expected READY after cancel, got %s", state)
	}

	if source.isOpen() {
		t.Errorf("expected the capture device to be closed after cancelling from ERROR")
	}

	// the device handle must be genuinely fresh for the next cycle
	source.failReads(nil)

	if err := rec.Start(); err != nil {
		t.Fatalf("error starting after recovery: %v", err)
	}

	if _, err := rec.Stop(); err != nil {
		t.Errorf("error stopping recovered capture: %v", err)
	}
}

func TestRecorder_OverlappingOperationsSerialize(t *testing.T) {
	source := &fakeSource{}
	rec, _ := newTestRecorder(t, source)

	var wg sync.WaitGroup

	// overlapping operations must queue behind each other, never
	// panic, and never tear the state machine
	for i := 0; i < 6; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = rec.Start()
			time.Sleep(time.Millisecond * 2)
			_, _ = rec.Stop()
		}()
	}

	for i := 0; i < 3; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = rec.Cancel()
		}()

		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = rec.Reset()
		}()
	}

	wg.Wait()

	switch state := rec.State(); state {
	case StateReady, StateRecording, StateStopped, StateError:
	default:
		t.Fatalf("illegal state %s after overlapping operations", state)
	}

	if err := rec.Reset(); err != nil {
		t.Fatalf("error resetting recorder: %v", err)
	}

	if state := rec.State(); state != StateReady {
		t.Errorf("expected READY after reset, got %s", state)
	}

	if source.isOpen() {
		t.Errorf("expected the capture device to be closed after the final reset")
	}
}
