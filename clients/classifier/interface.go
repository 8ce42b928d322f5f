package classifier

import (
	"context"

	"github.com/chatterjee-sid/voicebot/recorder"
)

type Interface interface {
	Classify(ctx context.Context, sample *recorder.Sample) (Label, error)
}
