// Package trace emits structured JSONL events for agent runs.
//
// Emission is off unless KW_OBSERVE_JSON=1; events land in
// .kubewizard/events.jsonl under the working directory. Run IDs travel on the
// context so every event of one agent run carries the same id.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type ctxKey int

const runIDKey ctxKey = iota

// WithRunID stamps a run ID onto the context. All events emitted under the
// returned context belong to that run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext reports the run ID carried by ctx; ok is false when no
// run is in progress.
func RunIDFromContext(ctx context.Context) (id string, ok bool) {
	id, ok = ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

func observeEnabled() bool {
	return os.Getenv("KW_OBSERVE_JSON") == "1"
}

// Emit writes a single JSON line when observation is enabled. It augments
// fields with an RFC3339Nano timestamp and the event name; callers' maps are
// never mutated.
func Emit(name string, fields map[string]any) {
	if !observeEnabled() {
		return
	}

	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace: marshal: %v\n", err)
		return
	}

	dir := ".kubewizard"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "trace: mkdir %s: %v\n", dir, err)
		return
	}

	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace: open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "trace: write %s: %v\n", path, err)
	}
}
