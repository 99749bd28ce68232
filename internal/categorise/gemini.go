package categorise

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/txengine/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GeminiClassifier categorises transactions with Gemini. It satisfies
// Classifier so the engine can treat it as just another stage.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier creates a classifier backed by the Gemini API. The
// API key is read from the environment by the genai client.
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClassifier: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

// geminiCategory is the strict JSON shape the prompt demands from the model.
type geminiCategory struct {
	Level1     string  `json:"level1"`
	Level2     string  `json:"level2"`
	Level3     string  `json:"level3"`
	Confidence float64 `json:"confidence"`
}

// Classify asks the model for a category. The prompt pins the output to a
// single strict JSON object; anything else is an error and the engine
// falls through.
func (g *GeminiClassifier) Classify(ctx context.Context, txn *domain.UnifiedTransaction) (*domain.CategorisationResult, error) {
	prompt :=
		"You are a personal-finance transaction categoriser.\n\n" +
			"Task:\n" +
			"- Categorise the transaction below into a three-level category.\n" +
			"- Output STRICT JSON only (no comments, no extra text).\n" +
			"- Output a single JSON object with these fields:\n" +
			"- \"level1\": string (broad category, e.g. \"Food\")\n" +
			"- \"level2\": string or empty (e.g. \"Groceries\")\n" +
			"- \"level3\": string or empty\n" +
			"- \"confidence\": number between 0 and 1\n\n" +
			"Rules:\n" +
			"- Use the merchant name as the primary signal, the description second.\n" +
			"- Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Do NOT use ```json or any Markdown.\n\n" +
			fmt.Sprintf("Merchant: %s\nDescription: %s\nAmount: %.2f\nDirection: %s\n",
				txn.BestMerchant(), txn.Description, txn.Amount, txn.Direction)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GeminiClassifier.Classify: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiClassifier.Classify: empty response from model")
	}

	var parsed geminiCategory
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("GeminiClassifier.Classify: unmarshal JSON: %w", err)
	}
	if strings.TrimSpace(parsed.Level1) == "" {
		return nil, fmt.Errorf("GeminiClassifier.Classify: model returned no category")
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	return &domain.CategorisationResult{
		Category: domain.Category{
			Level1: strings.TrimSpace(parsed.Level1),
			Level2: strings.TrimSpace(parsed.Level2),
			Level3: strings.TrimSpace(parsed.Level3),
		},
		Confidence: parsed.Confidence,
		Source:     domain.CategorySourceAI,
	}, nil
}

// cleanModelJSON strips Markdown fences when the model ignores the
// formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

var _ Classifier = (*GeminiClassifier)(nil)
