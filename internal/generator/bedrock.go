package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/config"
)

type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock drafts templates with an Anthropic model on Amazon Bedrock.
type Bedrock struct {
	client    invoker
	modelID   string
	maxTokens int
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []contentBlock `json:"content"`
}

// NewBedrock uses the default AWS credential chain in cfg.Region.
func NewBedrock(ctx context.Context, cfg config.AIConfig) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Bedrock{client: bedrockruntime.NewFromConfig(awsCfg), modelID: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

const systemPrompt = `You are a social engineering analyst writing material for security awareness training.
Reply with a single JSON object and nothing else.`

func buildPrompt(req Request) string {
	return fmt.Sprintf(`Write a realistic phishing simulation email.

Scenario: %s
Target country: %s (use local context where it fits)
Language: %s
Brand category: %s

Return JSON with exactly these keys:
{
  "subject": "urgent, clickable subject line",
  "body_html": "HTML body with inline CSS. Use {{link}} for the link and {{name}} for the recipient's name.",
  "body_text": "plain text version of the body",
  "difficulty": "beginner|intermediate|advanced",
  "estimated_success_rate": "low|medium|high"
}`, req.Prompt, req.CountryCode, req.Language, req.BrandCategory)
}

func (b *Bedrock) Generate(ctx context.Context, req Request) (*Draft, error) {
	maxTokens := b.maxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           systemPrompt,
		Messages: []bedrockMessage{
			{Role: "user", Content: []contentBlock{{Type: "text", Text: buildPrompt(req.withDefaults())}}},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("parse bedrock response: %w", err)
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	var draft Draft
	if err := json.Unmarshal([]byte(stripFences(text.String())), &draft); err != nil {
		return nil, fmt.Errorf("parse generated template: %w", err)
	}
	return &draft, nil
}

// stripFences removes a ```json ... ``` wrapper models sometimes add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// New picks the generator for cfg.Provider. Every provider falls back to Mock on failure.
func New(ctx context.Context, cfg config.AIConfig, log zerolog.Logger) (Generator, error) {
	fb := &Fallback{Timeout: cfg.Timeout, Log: log.With().Str("component", "generator").Logger()}
	if cfg.Provider == "bedrock" {
		b, err := NewBedrock(ctx, cfg)
		if err != nil {
			return nil, err
		}
		fb.Primary = b
	}
	return fb, nil
}
