package analysis

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a page and returns an immutable snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (PageSnapshot, error)
}

// Analyzer derives a SignalBundle from a snapshot. Implementations must be
// pure: identical snapshots yield identical bundles.
type Analyzer interface {
	Analyze(snapshot PageSnapshot) SignalBundle
}

// Backend is one interchangeable text-generation service.
type Backend interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Orchestrator walks a backend priority list until one produces text,
// synthesizing a fallback when all are exhausted. It never fails.
type Orchestrator interface {
	Generate(ctx context.Context, req GenerationRequest) GenerationResult
}

// SessionStore persists completed runs. Sessions are write-once, read-many.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	Get(ctx context.Context, id string) (Session, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Hasher digests fetched markup for integrity tracking.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs.
type IDGenerator interface {
	NewID() (string, error)
}
