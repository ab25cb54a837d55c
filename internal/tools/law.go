// Package tools defines the law tools exposed over MCP.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"lawmcp/server/internal/lawapi"
)

// LawClient is the slice of the law API client the tools need.
type LawClient interface {
	SearchLaws(ctx context.Context, keyword string, limit int) (*lawapi.SearchResult, error)
	GetLawData(ctx context.Context, lawIDOrNum string) (*lawapi.LawData, error)
}

// maxFetchChars bounds fetch_law output so a whole code does not blow up
// the client's context window.
const maxFetchChars = 20000

// LawTools builds the four law tools backed by the given client.
func LawTools(client LawClient) []*Tool {
	return []*Tool{
		searchLawTool(client),
		fetchLawTool(client),
		summarizeLawTool(client),
		consistencyTool(client),
	}
}

func searchLawTool(client LawClient) *Tool {
	return &Tool{
		Name:        "search_law",
		Description: "Search Japanese laws by title keyword. Returns law titles, numbers and ids.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keyword": map[string]any{"type": "string", "description": "Keyword to match against law titles"},
				"limit":   map[string]any{"type": "number", "description": "Maximum number of results (default 10)"},
			},
			"required": []string{"keyword"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			keyword := stringArg(args, "keyword")
			if keyword == "" {
				return "", errors.New("keyword is required")
			}
			limit := intArg(args, "limit")
			if limit <= 0 {
				limit = 10
			}

			res, err := client.SearchLaws(ctx, keyword, limit)
			if err != nil {
				return "", err
			}
			if len(res.Laws) == 0 {
				return fmt.Sprintf("No laws found for %q.", keyword), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d of %d laws matching %q:\n", len(res.Laws), res.TotalCount, keyword)
			for _, law := range res.Laws {
				fmt.Fprintf(&b, "- %s（%s）[%s]\n", law.RevisionInfo.LawTitle, law.LawInfo.LawNum, law.LawInfo.LawID)
			}
			return b.String(), nil
		},
	}
}

func fetchLawTool(client LawClient) *Tool {
	return &Tool{
		Name:        "fetch_law",
		Description: "Fetch the full text of a law by law id or law number, optionally a single article.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"law_id":  map[string]any{"type": "string", "description": "Law id or law number"},
				"article": map[string]any{"type": "string", "description": "Article number to fetch (e.g. \"709\")"},
			},
			"required": []string{"law_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			lawID := stringArg(args, "law_id")
			if lawID == "" {
				return "", errors.New("law_id is required")
			}

			data, err := client.GetLawData(ctx, lawID)
			if err != nil {
				return "", err
			}

			if article := stringArg(args, "article"); article != "" {
				node := data.FullText.FindArticle(article)
				if node == nil {
					return "", errors.Errorf("article %s not found in %s", article, data.RevisionInfo.LawTitle)
				}
				return fmt.Sprintf("%s 第%s条\n%s", data.RevisionInfo.LawTitle, article, node.FlattenText()), nil
			}

			text := data.FullText.FlattenText()
			if len(text) > maxFetchChars {
				text = text[:maxFetchChars] + "\n…(truncated; fetch individual articles for the rest)"
			}
			return text, nil
		},
	}
}

func summarizeLawTool(client LawClient) *Tool {
	return &Tool{
		Name:        "summarize_law",
		Description: "Summarize a law's structure: title, promulgation, chapter/article counts and leading articles.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"law_id": map[string]any{"type": "string", "description": "Law id or law number"},
			},
			"required": []string{"law_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			lawID := stringArg(args, "law_id")
			if lawID == "" {
				return "", errors.New("law_id is required")
			}

			data, err := client.GetLawData(ctx, lawID)
			if err != nil {
				return "", err
			}
			root := data.FullText

			var b strings.Builder
			fmt.Fprintf(&b, "Title: %s\n", data.RevisionInfo.LawTitle)
			fmt.Fprintf(&b, "Law number: %s\n", data.LawInfo.LawNum)
			if data.LawInfo.PromulgationDate != "" {
				fmt.Fprintf(&b, "Promulgated: %s\n", data.LawInfo.PromulgationDate)
			}
			fmt.Fprintf(&b, "Structure: %d chapters, %d articles, %d paragraphs\n",
				root.CountTag("Chapter"), root.CountTag("Article"), root.CountTag("Paragraph"))

			articles := root.Articles()
			if len(articles) > 0 {
				b.WriteString("Leading articles:\n")
				for i, art := range articles {
					if i == 5 {
						fmt.Fprintf(&b, "  …and %d more\n", len(articles)-5)
						break
					}
					line := art.FlattenText()
					if idx := strings.IndexByte(line, '\n'); idx > 0 {
						second := line[idx+1:]
						if j := strings.IndexByte(second, '\n'); j > 0 {
							second = second[:j]
						}
						line = strings.TrimSpace(line[:idx]) + " " + strings.TrimSpace(second)
					}
					if len(line) > 120 {
						line = line[:120] + "…"
					}
					fmt.Fprintf(&b, "  %s\n", line)
				}
			}
			return b.String(), nil
		},
	}
}

func consistencyTool(client LawClient) *Tool {
	return &Tool{
		Name:        "check_law_consistency",
		Description: "Score the textual consistency of two provisions. Provide two law_id/article pairs, or raw text_a/text_b.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"law_id_a":  map[string]any{"type": "string"},
				"article_a": map[string]any{"type": "string"},
				"law_id_b":  map[string]any{"type": "string"},
				"article_b": map[string]any{"type": "string"},
				"text_a":    map[string]any{"type": "string", "description": "Raw provision text (overrides law_id_a)"},
				"text_b":    map[string]any{"type": "string", "description": "Raw provision text (overrides law_id_b)"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			textA, labelA, err := provisionText(ctx, client, args, "a")
			if err != nil {
				return "", err
			}
			textB, labelB, err := provisionText(ctx, client, args, "b")
			if err != nil {
				return "", err
			}

			score := similarity(textA, textB)
			report := map[string]any{
				"provision_a": labelA,
				"provision_b": labelB,
				"score":       fmt.Sprintf("%.3f", score),
				"verdict":     verdict(score),
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return "", errors.Wrap(err, "marshal report")
			}
			return string(out), nil
		},
	}
}

// provisionText resolves one side of the comparison: inline text wins,
// otherwise the provision is fetched from the law API.
func provisionText(ctx context.Context, client LawClient, args map[string]any, side string) (text, label string, err error) {
	if raw := stringArg(args, "text_"+side); raw != "" {
		return raw, "inline text", nil
	}

	lawID := stringArg(args, "law_id_"+side)
	if lawID == "" {
		return "", "", errors.Errorf("either text_%s or law_id_%s is required", side, side)
	}
	data, err := client.GetLawData(ctx, lawID)
	if err != nil {
		return "", "", err
	}

	article := stringArg(args, "article_"+side)
	if article == "" {
		return data.FullText.FlattenText(), data.RevisionInfo.LawTitle, nil
	}
	node := data.FullText.FindArticle(article)
	if node == nil {
		return "", "", errors.Errorf("article %s not found in %s", article, data.RevisionInfo.LawTitle)
	}
	return node.FlattenText(), fmt.Sprintf("%s 第%s条", data.RevisionInfo.LawTitle, article), nil
}
