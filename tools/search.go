package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// WebSearchInput carries the search query.
type WebSearchInput struct {
	Query string `json:"query" jsonschema_description:"The web search query, e.g. 'kubernetes CrashLoopBackOff causes'."`
}

var webSearchInputSchema = GenerateSchema[WebSearchInput]()

// searchEndpoint is DuckDuckGo's HTML front end; no API key required.
const searchEndpoint = "https://html.duckduckgo.com/html/"

// maxSearchResults caps the digest length.
const maxSearchResults = 10

// NewWebSearch returns the web-search capability: a ranked text digest of
// search results for a query.
func NewWebSearch(client *http.Client) ToolDefinition {
	return ToolDefinition{
		Name: "web-search",
		Description: `Search the web for information. Useful kubernetes sources include:
- https://kubernetes.io/docs/: official documentation
- https://github.com/kubernetes/kubernetes: the kubernetes repository
Returns a ranked list of result titles, links and snippets.`,
		InputSchema: webSearchInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			var in WebSearchInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return "", fmt.Errorf("query must not be empty")
			}
			return runSearch(client, query)
		},
	}
}

func runSearch(client *http.Client, query string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, searchEndpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "kubewizard/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("search response did not parse: %w", err)
	}

	results := parseSearchResults(doc)
	if len(results) == 0 {
		return "no results found", nil
	}
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.title, r.link)
		if r.snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.snippet)
		}
	}
	return sb.String(), nil
}

type searchResult struct {
	title   string
	link    string
	snippet string
}

// parseSearchResults walks the result page and pairs result links with their
// snippets in document order.
func parseSearchResults(doc *html.Node) []searchResult {
	var results []searchResult
	var snippets []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				results = append(results, searchResult{
					title: strings.TrimSpace(nodeText(n)),
					link:  attrValue(n, "href"),
				})
			case hasClass(n, "result__snippet"):
				snippets = append(snippets, strings.TrimSpace(nodeText(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for i := range results {
		if i < len(snippets) {
			results[i].snippet = snippets[i]
		}
	}
	return results
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attrValue(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
