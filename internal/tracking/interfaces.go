package tracking

import (
	"context"
	"io"
	"time"
)

// Reader loads the record streams consumed by the aggregation engine.
type Reader interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, projectID string) (Project, error)
	GetAssembly(ctx context.Context, assemblyID string) (Assembly, error)
	ListAssemblies(ctx context.Context, query AssemblyQuery) ([]Assembly, error)
	ListEntries(ctx context.Context, query EntryQuery) ([]ProgressEntry, error)
	ListStages(ctx context.Context, query StageQuery) ([]Stage, error)
}

// EntryWriter persists newly logged progress entries.
type EntryWriter interface {
	CreateEntry(ctx context.Context, entry ProgressEntry) error
}

// Store combines read and write access to the backing data store.
type Store interface {
	Reader
	EntryWriter
	Close()
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes exported artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
