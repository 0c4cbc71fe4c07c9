package assistant

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// ContentGenerator is the part of the genai client the tip generator uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTipGenerator asks a Gemini model for a saving tip.
type GeminiTipGenerator struct {
	models ContentGenerator
	model  string
}

// NewGeminiTipGenerator creates a genai client using the environment's API
// key or Vertex AI settings.
func NewGeminiTipGenerator(ctx context.Context, model string) (*GeminiTipGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiTipGenerator: create genai client: %w", err)
	}
	return NewGeminiTipGeneratorWithModels(client.Models, model), nil
}

// NewGeminiTipGeneratorWithModels wraps an existing content generator.
func NewGeminiTipGeneratorWithModels(models ContentGenerator, model string) *GeminiTipGenerator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiTipGenerator{models: models, model: model}
}

// SavingTip implements TipGenerator.
func (g *GeminiTipGenerator) SavingTip(ctx context.Context, insights []domain.CategoryInsight) (string, error) {
	if len(insights) == 0 {
		return "", nil
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildTipPrompt(insights)}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("SavingTip: generate content: %w", err)
	}

	tip := cleanModelText(resp.Text())
	if tip == "" {
		return "", fmt.Errorf("SavingTip: empty response from model")
	}
	return tip, nil
}

func buildTipPrompt(insights []domain.CategoryInsight) string {
	var b strings.Builder
	b.WriteString("You are a personal budgeting assistant.\n\n")
	b.WriteString("Here is this month's spending per category compared with last month:\n\n")
	for _, in := range insights {
		fmt.Fprintf(&b, "- %s: this month %s, last month %s, trend %s, suggested limit %s\n",
			in.Category,
			in.CurrentSpending.StringFixed(2),
			in.PreviousSpending.StringFixed(2),
			in.Trend,
			in.SuggestedLimit.StringFixed(2),
		)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Write ONE practical saving tip of at most two sentences.\n")
	b.WriteString("- Refer to a specific category from the list.\n")
	b.WriteString("- Plain text only. No Markdown, no lists, no quotes.\n")
	return b.String()
}

func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.Trim(s, "\"")
	return strings.TrimSpace(s)
}
