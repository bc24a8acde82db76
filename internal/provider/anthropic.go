// Package provider constructs the completion-service client.
package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest

// NewClient returns a client using the API key from the env.
func NewClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

// Healthcheck returns a probe for completion-service reachability. It issues
// the cheapest authenticated call the service offers, so a bad key or an
// unreachable endpoint both surface as a failed check.
func Healthcheck(client *anthropic.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)}); err != nil {
			return errors.Wrap(err, "completion service unreachable")
		}
		return nil
	}
}

// summaryPersona demands a first-person narrative plus an explicit key-facts
// extraction, joined by the full-width delimiter consumed downstream.
const summaryPersona = `You are the assistant who lived this conversation. Produce exactly one line in the form:
<narrative>｜<key facts>
where <narrative> is a first-person summary of what happened so far, and <key facts> lists the user-identifying facts worth keeping (names, clusters, namespaces, preferences). Output nothing else.`

// Summarize collapses a rendered conversation transcript into a single
// summarizing message via the completion service.
func Summarize(ctx context.Context, client *anthropic.Client, model anthropic.Model, transcript string) (string, error) {
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: int64(1024),
		System:    []anthropic.TextBlockParam{{Text: summaryPersona}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "summarization call failed")
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("summarization returned empty output")
	}
	// Keep the downstream contract even when the model forgets the delimiter.
	if !strings.Contains(out, "｜") {
		out += "｜(no key facts extracted)"
	}
	return out, nil
}
