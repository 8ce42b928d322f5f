package pipeline

import "context"

type Interface interface {
	Begin() error
	Abort() error
	Commit(ctx context.Context) Outcome
	Phase() Phase
}
