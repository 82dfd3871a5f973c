// Package classifier decides the sentiment verdict of prospect replies.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

const (
	VerdictPositive = "positive"
	VerdictNegative = "negative"
	VerdictNeutral  = "neutral"
)

const classifyPrompt = `You classify replies to cold outreach emails.
Answer with exactly one word: positive, negative, or neutral.

positive: the prospect shows interest, asks for more information, or proposes a meeting.
negative: the prospect declines, asks to stop, or is hostile.
neutral: out-of-office, ambiguous, or forwarding to someone else.

Reply:
%s`

// GeminiClassifier asks a Gemini model for the verdict. An unrecognized
// answer falls back to neutral so the lead stays in sequence.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

func NewGeminiClassifier(ctx context.Context, cfg config.ClassifierConfig, log *logger.Logger) (*GeminiClassifier, error) {
	if cfg.GetGeminiAPIKey() == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetGeminiAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClassifier{
		client: client,
		model:  cfg.GetClassifierModel(),
		log:    log,
	}, nil
}

func (c *GeminiClassifier) ClassifyReply(ctx context.Context, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return VerdictNeutral, nil
	}
	if len(body) > 4000 {
		body = body[:4000]
	}

	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(classifyPrompt, body), genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", apperr.External("reply classification failed", err)
	}

	verdict := strings.ToLower(strings.TrimSpace(result.Text()))
	switch verdict {
	case VerdictPositive, VerdictNegative, VerdictNeutral:
		return verdict, nil
	}
	c.log.Warn("unrecognized classifier verdict, treating as neutral", "verdict", verdict)
	return VerdictNeutral, nil
}

// KeywordClassifier is the fallback when no Gemini key is configured. It
// settles only on unmistakable signals.
type KeywordClassifier struct{}

var positiveMarkers = []string{
	"interested", "let's talk", "lets talk", "schedule a call", "book a call",
	"sounds good", "tell me more", "send more info", "yes please",
}

var negativeMarkers = []string{
	"not interested", "no thanks", "no thank you", "unsubscribe",
	"stop emailing", "remove me", "do not contact", "don't contact",
}

func (KeywordClassifier) ClassifyReply(_ context.Context, body string) (string, error) {
	lowered := strings.ToLower(body)
	for _, marker := range negativeMarkers {
		if strings.Contains(lowered, marker) {
			return VerdictNegative, nil
		}
	}
	for _, marker := range positiveMarkers {
		if strings.Contains(lowered, marker) {
			return VerdictPositive, nil
		}
	}
	return VerdictNeutral, nil
}
