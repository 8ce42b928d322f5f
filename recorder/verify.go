package recorder

import (
	"fmt"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// Verify checks that a sample handed back by Stop can actually be
// trusted. Stop tolerates a desynchronized capture device by returning
// the last known path, so the file may be missing, empty, or truncated.
func Verify(fileSys afero.Fs, sample *Sample) error {
	if sample == nil || sample.Path == "" {
		return fmt.Errorf("no sample to verify")
	}

	info, err := fileSys.Stat(sample.Path)
	if err != nil {
		return fmt.Errorf("sample file missing: %w", err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("sample file %s is empty", sample.Path)
	}

	f, err := fileSys.Open(sample.Path)
	if err != nil {
		return fmt.Errorf("opening sample file: %w", err)
	}

	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return fmt.Errorf("sample file %s is not a valid wav file", sample.Path)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return fmt.Errorf("reading sample duration: %w", err)
	}

	if duration <= 0 {
		return fmt.Errorf("sample file %s contains no audio", sample.Path)
	}

	return nil
}
