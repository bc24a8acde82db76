// Package memory keeps the durable, per-user conversation log with a bounded
// size: Redis-backed when reachable, in-process otherwise, compacted into a
// single summarizing message once a user's history outgrows the threshold.
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one persisted conversation turn. Immutable once appended,
// ordered by append time within a user's history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Summarizer collapses a rendered transcript into the single compaction
// message. Implementations call the completion service.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, transcript string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

// backend is the ordered per-user message log. Append and Replace must be
// atomic per user id.
type backend interface {
	Append(ctx context.Context, userID string, m Message) error
	Read(ctx context.Context, userID string, limit int64) ([]Message, error)
	Count(ctx context.Context, userID string) (int64, error)
	Replace(ctx context.Context, userID string, m Message) error
	Clear(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Name() string
}

// DefaultCompactThreshold is the stored message count beyond which a read
// triggers compaction.
const DefaultCompactThreshold = 10

// DefaultTTL is the sliding expiry applied to each user's durable history.
const DefaultTTL = time.Hour

// Options configures a Store.
type Options struct {
	// RedisURL selects the durable backend; empty or unreachable falls back
	// to the in-process store for the lifetime of this Store.
	RedisURL         string
	TTL              time.Duration
	CompactThreshold int
	Summarizer       Summarizer
	Logger           zerolog.Logger
}

// Store is the per-user conversation memory. The backend is picked once at
// construction; a Redis failure later in the session pins the session to
// whatever backend was chosen, the two are never synced.
type Store struct {
	backend    backend
	summarizer Summarizer
	threshold  int
	log        zerolog.Logger
}

// New builds a Store, probing Redis once. Degradation to the in-process
// fallback is logged a single time, here.
func New(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CompactThreshold <= 0 {
		opts.CompactThreshold = DefaultCompactThreshold
	}

	var b backend
	if opts.RedisURL != "" {
		rb, err := newRedisBackend(opts.RedisURL, opts.TTL)
		if err == nil {
			b = rb
		} else {
			opts.Logger.Warn().Err(err).Msg("redis unavailable, falling back to in-process memory")
		}
	}
	if b == nil {
		b = newMemoryBackend()
	}

	return &Store{
		backend:    b,
		summarizer: opts.Summarizer,
		threshold:  opts.CompactThreshold,
		log:        opts.Logger,
	}
}

// Append adds one message to the user's history. The history is created
// lazily on the first append for a user id.
func (s *Store) Append(ctx context.Context, userID, role, content string) error {
	return s.backend.Append(ctx, userID, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Read returns up to limit most recent messages in insertion order,
// compacting the stored history first when it exceeds the threshold.
// Compaction is synchronous and replaces the whole history with one
// summarizing message.
func (s *Store) Read(ctx context.Context, userID string, limit int) ([]Message, error) {
	if err := s.maybeCompact(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("history compaction failed, serving uncompacted history")
	}
	if limit <= 0 {
		limit = s.threshold
	}
	return s.backend.Read(ctx, userID, int64(limit))
}

// Clear removes the user's entire history. Only an explicit clear deletes
// history; compaction always leaves the summary behind.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.backend.Clear(ctx, userID)
}

// Ping reports backend reachability for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Backend names the active backing store ("redis" or "memory").
func (s *Store) Backend() string {
	return s.backend.Name()
}

func (s *Store) maybeCompact(ctx context.Context, userID string) error {
	if s.summarizer == nil {
		return nil
	}
	count, err := s.backend.Count(ctx, userID)
	if err != nil {
		return err
	}
	if count <= int64(s.threshold) {
		return nil
	}

	all, err := s.backend.Read(ctx, userID, count)
	if err != nil {
		return err
	}
	summary, err := s.summarizer.Summarize(ctx, renderTranscript(all))
	if err != nil {
		return err
	}

	if err := s.backend.Replace(ctx, userID, Message{
		Role:      RoleAssistant,
		Content:   summary,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Int64("compacted", count).Msg("history compacted into summary")
	return nil
}

func renderTranscript(msgs []Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
