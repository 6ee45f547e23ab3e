package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"cardlab-backend/internal/review"
)

// Accepted source text window. Anything outside is rejected before the
// model is called.
const (
	MinSourceChars = 1000
	MaxSourceChars = 10000
)

// GeminiService turns a block of source text into candidate flashcards.
// It is the only component that talks to the generation model.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

var _ review.Generator = (*GeminiService)(nil)

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateProposals implements review.Generator.
func (s *GeminiService) GenerateProposals(ctx context.Context, sourceText string) (*review.GenerationResult, error) {
	if err := ValidateSourceText(sourceText); err != nil {
		return nil, err
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := buildProposalPrompt(sourceText)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	cards, err := parseProposalResponse(extractText(resp))
	if err != nil {
		return nil, err
	}

	return &review.GenerationResult{
		GenerationID: uuid.New().String(),
		Cards:        cards,
	}, nil
}

// ValidateSourceText enforces the accepted length window.
func ValidateSourceText(sourceText string) error {
	n := len(strings.TrimSpace(sourceText))
	if n < MinSourceChars || n > MaxSourceChars {
		return &ValidationError{
			Message: fmt.Sprintf("source text must be between %d and %d characters", MinSourceChars, MaxSourceChars),
			Fields:  map[string]string{"source_text": fmt.Sprintf("got %d characters", n)},
		}
	}
	return nil
}

func buildProposalPrompt(sourceText string) string {
	var b strings.Builder

	b.WriteString("You are an expert flashcard creator. Generate high-quality flashcards from the content below.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(`
Rules:
- Front must be under 15 words (question or term, never a statement)
- Back must be under 60 words and self-contained
- No two cards may test the same concept
- Cover the whole content; do not invent facts that are not in it

JSON schema per card:
{"front": "string", "back": "string"}
`)
	b.WriteString("\n---CONTENT---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---END---\n")

	return b.String()
}

func parseProposalResponse(rawText string) ([]review.CardText, error) {
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var cards []review.CardText
	if err := json.Unmarshal([]byte(rawText), &cards); err != nil {
		// The model sometimes wraps the array in prose despite the prompt.
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start >= 0 && end > start {
			json.Unmarshal([]byte(rawText[start:end+1]), &cards)
		}
	}

	var valid []review.CardText
	for _, c := range cards {
		if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("the model returned no usable flashcards")
	}
	return valid, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
