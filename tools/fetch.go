package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// FetchURLInput carries the page address to fetch.
type FetchURLInput struct {
	URL string `json:"url" jsonschema_description:"The URL to fetch, e.g. https://kubernetes.io/releases."`
}

var fetchURLInputSchema = GenerateSchema[FetchURLInput]()

const fetchTruncationSentinel = "\n-- truncated --\n"

// fetchRuneCap keeps page renderings predictably small for the prompt window.
const fetchRuneCap = 12_000

// strippedTags are removed wholesale before text extraction.
var strippedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"header":   {},
	"footer":   {},
	"nav":      {},
	"noscript": {},
	"iframe":   {},
}

// NewFetchURL returns the HTTP-fetch capability: the visible-text rendering
// of a page, with chrome and code stripped.
func NewFetchURL(client *http.Client) ToolDefinition {
	return ToolDefinition{
		Name:        "fetch-url",
		Description: "Fetch a web page by URL and return its visible text with headers, footers, scripts and styles removed. Input should be a full URL such as https://kubernetes.io/releases.",
		InputSchema: fetchURLInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			var in FetchURLInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			target := trimCommand(in.URL)
			if target == "" {
				return "", fmt.Errorf("url must not be empty")
			}
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				return "", fmt.Errorf("url must start with http:// or https://")
			}
			return fetchPage(client, target)
		},
	}
}

func fetchPage(client *http.Client, target string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "kubewizard/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("page did not parse: %w", err)
	}

	var sb strings.Builder
	extractVisibleText(doc, &sb)
	out := collapseBlankLines(sb.String())

	if r := []rune(out); len(r) > fetchRuneCap {
		out = string(r[:fetchRuneCap]) + fetchTruncationSentinel
	}
	return out, nil
}

func extractVisibleText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		if _, skip := strippedTags[n.Data]; skip {
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractVisibleText(c, sb)
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
