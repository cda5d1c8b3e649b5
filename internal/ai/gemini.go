package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiProvider implements ManifestParser using Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"

	// Extraction, not creativity.
	model.SetTemperature(0.1)

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// ParseManifest extracts stops from manifest text.
func (p *GeminiProvider) ParseManifest(ctx context.Context, text string, hints ManifestHints) ([]ManifestEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty manifest")
	}
	fullPrompt := fmt.Sprintf("%s\n\nManifest:\n%s", buildManifestPrompt(hints), text)

	resp, err := p.model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	return parseManifestJSON(responseText.String())
}

// parseManifestJSON accepts either {"stops": [...]} or a bare array and drops entries
// without an address or title.
func parseManifestJSON(raw string) ([]ManifestEntry, error) {
	cleaned := cleanJSONString(raw)

	var entries []ManifestEntry
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleaned)
		}
	} else {
		var resp manifestResponse
		if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleaned)
		}
		entries = resp.Stops
	}

	out := entries[:0]
	for _, e := range entries {
		e.Title = strings.TrimSpace(e.Title)
		e.Address = strings.TrimSpace(e.Address)
		if e.Address == "" && e.Title == "" {
			continue
		}
		e.StopType = strings.ToLower(strings.TrimSpace(e.StopType))
		e.OrderHint = strings.ToLower(strings.TrimSpace(e.OrderHint))
		out = append(out, e)
	}
	return out, nil
}

func buildManifestPrompt(h ManifestHints) string {
	region := h.Region
	if region == "" {
		region = "UNKNOWN_REGION"
	}
	now := h.CurrentTime
	if now == "" {
		now = "UNKNOWN_TIME"
	}

	return fmt.Sprintf(`Role: You extract delivery stops for a courier's route planner.
Context:
- Region: %s
- Current Time: %s

RULES:
1. One entry per distinct address. Merge repeated lines for the same address and add up package counts.
2. Copy addresses exactly as written; complete them with city or postcode only when the manifest states it elsewhere.
3. "stop_type" is "pickup" only when the line says pickup/collect; otherwise "delivery".
4. "order_hint" is "first" or "last" only when the manifest says so (e.g. "first stop", "deliver last"); otherwise "auto".
5. Time windows like "10-12" or "before 5pm" go to "arrival_from"/"arrival_to" as HH:MM (24h).
6. Anything else useful for the driver (door codes, "leave with neighbour") goes to "notes".
7. Never invent stops.

Output JSON Schema:
{
  "stops": [
    {
      "title": "string",
      "address": "string",
      "stop_type": "delivery" | "pickup",
      "order_hint": "first" | "auto" | "last",
      "package_count": integer,
      "arrival_from": "HH:MM or empty",
      "arrival_to": "HH:MM or empty",
      "notes": "string"
    }
  ]
}
`, region, now)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
