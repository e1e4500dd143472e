package storage

import "context"

// Publisher uploads a finished project directory somewhere it can be shared.
type Publisher interface {
	Publish(ctx context.Context, root string) (PublishResult, error)
}

type PublishResult struct {
	Uploaded int
	Skipped  int
}
