package core

import "context"

// Storage reads and writes the content of a resource by path.
// Adhering to this interface keeps the engine independent of the
// underlying storage mechanism (filesystem, git, memory, remote).
type Storage interface {
	// Read returns the current persisted content of path.
	Read(ctx context.Context, path string) (string, error)

	// Write replaces the persisted content of path.
	Write(ctx context.Context, path, content string) error
}

// Notifier delivers change notifications for watched folders.
type Notifier interface {
	// Watch starts a subscription for folder under id. Events are delivered
	// on the returned channel until StopWatch is called with the same id,
	// after which the channel is closed.
	Watch(ctx context.Context, id, folder string) (<-chan ChangeEvent, error)

	// StopWatch ends the subscription registered under id.
	StopWatch(ctx context.Context, id string) error
}
