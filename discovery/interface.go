package discovery

import "context"

type Interface interface {
	Scan(ctx context.Context) []string
}
