// Package categorize adapts a chat model into the tool categorization
// collaborator: it shapes prompts listing candidate groups of tools, parses
// the model's JSON leniently, and caches results by toolset content hash so
// an unchanged toolset never triggers a second remote call.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/provider"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// MaxCategorizationRetries bounds remote attempts per toolset before the
// toolset degrades to uncategorized.
const MaxCategorizationRetries = 2

const summarizeSystemPrompt = `You are organizing a large set of callable tools for an AI coding assistant. You will be given numbered groups of tools. For each group, produce a short lowercase snake_case name and a one-paragraph summary of what the group's tools do, written as instructions that tell a model when to activate the group. Respond with a JSON array of objects with keys "groupIndex", "groupName" and "summary". Respond with JSON only.`

const divideSystemPrompt = `You are organizing a large set of callable tools for an AI coding assistant. Partition the given tools into coherent groups of related functionality. Each tool must appear in exactly one group. Use short lowercase snake_case group names and write each summary as instructions that tell a model when to activate the group. Put tools that fit nowhere into a group named "uncategorized". Respond with a JSON array of objects with keys "groupName", "summary" and "tools" (an array of tool names). Respond with JSON only.`

// Categorizer shapes categorization requests for a chat model and parses
// its responses.
type Categorizer struct {
	client  provider.ChatClient
	retries int
}

// NewCategorizer creates a Categorizer over the given chat collaborator.
func NewCategorizer(client provider.ChatClient) *Categorizer {
	return &Categorizer{client: client, retries: MaxCategorizationRetries}
}

// summaryResponse is one entry of the summarize wire format.
type summaryResponse struct {
	GroupIndex int    `json:"groupIndex"`
	GroupName  string `json:"groupName"`
	Summary    string `json:"summary"`
}

// divisionResponse is one entry of the divide wire format. Tool membership
// is returned by name and resolved against the request tools; unknown names
// are ignored.
type divisionResponse struct {
	GroupName string   `json:"groupName"`
	Summary   string   `json:"summary"`
	Tools     []string `json:"tools"`
}

// SummarizeToolset asks the model for a single category covering the whole
// toolset. Used for toolsets small enough to collapse into one group.
func (c *Categorizer) SummarizeToolset(ctx context.Context, toolsetKey string, tools []types.Tool) (types.SummarizedToolCategory, error) {
	prompt := summarizePrompt(toolsetKey, tools)

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.SummarizedToolCategory{}, err
		}

		content, err := c.client.Complete(ctx, summarizeSystemPrompt, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		summaries, err := parseSummaries(content)
		if err != nil {
			lastErr = err
			continue
		}

		for _, s := range summaries {
			if s.GroupIndex == 0 && s.GroupName != "" {
				return types.SummarizedToolCategory{
					Name:    s.GroupName,
					Summary: s.Summary,
					Tools:   tools,
				}, nil
			}
		}
		lastErr = fmt.Errorf("no summary for group 0 in response")
	}

	return types.SummarizedToolCategory{}, fmt.Errorf("summarize toolset %s: %w", toolsetKey, lastErr)
}

// DivideToolset asks the model to partition a large toolset into categories.
// The previous categorization, when present, is passed as a stability hint
// so group names survive small toolset changes. Tools the model leaves out
// or assigns to unknown names are returned in the uncategorized remainder by
// the caller.
func (c *Categorizer) DivideToolset(ctx context.Context, toolsetKey string, tools []types.Tool, previous []types.SummarizedToolCategory) ([]types.SummarizedToolCategory, error) {
	prompt := dividePrompt(toolsetKey, tools, previous)

	byName := make(map[string]types.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := c.client.Complete(ctx, divideSystemPrompt, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		divisions, err := parseDivisions(content)
		if err != nil {
			lastErr = err
			continue
		}

		categories := make([]types.SummarizedToolCategory, 0, len(divisions))
		for _, d := range divisions {
			if d.GroupName == "" {
				continue
			}
			category := types.SummarizedToolCategory{Name: d.GroupName, Summary: d.Summary}
			for _, name := range d.Tools {
				if t, ok := byName[name]; ok {
					category.Tools = append(category.Tools, t)
				}
			}
			if len(category.Tools) > 0 {
				categories = append(categories, category)
			}
		}

		if len(categories) == 0 {
			lastErr = fmt.Errorf("division assigned no known tools")
			continue
		}
		return categories, nil
	}

	return nil, fmt.Errorf("divide toolset %s: %w", toolsetKey, lastErr)
}

func parseSummaries(content string) ([]summaryResponse, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	// A single object is accepted as a one-element array.
	if len(raw) > 0 && raw[0] == '{' {
		var one summaryResponse
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("invalid summary JSON: %w", err)
		}
		return []summaryResponse{one}, nil
	}

	var many []summaryResponse
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("invalid summary JSON: %w", err)
	}
	return many, nil
}

func parseDivisions(content string) ([]divisionResponse, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 && raw[0] == '{' {
		var one divisionResponse
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("invalid division JSON: %w", err)
		}
		return []divisionResponse{one}, nil
	}

	var many []divisionResponse
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("invalid division JSON: %w", err)
	}
	return many, nil
}

func summarizePrompt(toolsetKey string, tools []types.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Group 0 (%s):\n", toolsetKey)
	writeToolList(&b, tools)
	return b.String()
}

func dividePrompt(toolsetKey string, tools []types.Tool, previous []types.SummarizedToolCategory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Toolset %s contains %d tools:\n", toolsetKey, len(tools))
	writeToolList(&b, tools)

	if len(previous) > 0 {
		b.WriteString("\nA previous pass grouped these tools as follows. Keep group names and membership stable where the tools are unchanged:\n")
		for _, category := range previous {
			names := make([]string, len(category.Tools))
			for i, t := range category.Tools {
				names[i] = t.Name
			}
			fmt.Fprintf(&b, "- %s: %s\n", category.Name, strings.Join(names, ", "))
		}
	}

	log.Trace().Str("toolset", toolsetKey).Int("tool_count", len(tools)).Msg("Built division prompt")
	return b.String()
}

func writeToolList(b *strings.Builder, tools []types.Tool) {
	for _, t := range tools {
		fmt.Fprintf(b, "- %s: %s\n", t.Name, truncateDescription(t.Description, 256))
	}
}

// truncateDescription caps a description for prompt inclusion, backing off
// to a rune boundary so the cut never produces invalid UTF-8.
func truncateDescription(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
