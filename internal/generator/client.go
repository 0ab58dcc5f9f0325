package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"golang.org/x/sync/errgroup"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/config"
	"github.com/flashlearn/backend/internal/logger"
)

// maxParallelTopics bounds concurrent model calls for multi-topic requests.
const maxParallelTopics = 3

// LLMClient is the interface both generator implementations satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// TopicSet is the parsed result for one topic.
type TopicSet struct {
	Topic string
	Cards []GeneratedCard
}

// Usage sums token counts across calls.
type Usage struct {
	PromptTokens int
	OutputTokens int
}

func (u *Usage) add(r *LLMResponse) {
	if r == nil {
		return
	}
	u.PromptTokens += r.PromptTokens
	u.OutputTokens += r.OutputTokens
}

// Generator wraps an LLMClient with the flashcard prompts and parser.
type Generator struct {
	llm   LLMClient
	model string
	log   *logger.Logger
}

func NewGenerator(cfg *config.Config, log *logger.Logger) *Generator {
	log = log.With("component", "Generator")
	if cfg.MockGenerator {
		log.Info("generator using mock data")
		return New(NewMockClient(), "mock", log)
	}
	log.Info("generator using Anthropic API", "model", cfg.AnthropicModel)
	return New(NewAPIClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.AnthropicModel, log)
}

func New(llm LLMClient, model string, log *logger.Logger) *Generator {
	return &Generator{llm: llm, model: model, log: log}
}

func (g *Generator) ModelName() string {
	return g.model
}

// GenerateForTopic asks the model for count cards about topic. Any failure
// is terminal for the request and reported as *common.GenerationError.
func (g *Generator) GenerateForTopic(ctx context.Context, topic string, count int) (*TopicSet, Usage, error) {
	var usage Usage
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, usage, common.Invalid("topic is required")
	}
	if count <= 0 {
		return nil, usage, common.Invalid("count must be positive")
	}

	resp, err := g.llm.Generate(ctx, SystemPrompt(), BuildUserPrompt(topic, count))
	if err != nil {
		return nil, usage, &common.GenerationError{Reason: fmt.Sprintf("model call for %q", topic), Wrapped: err}
	}
	usage.add(resp)

	set, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, usage, &common.GenerationError{Reason: fmt.Sprintf("unparseable reply for %q", topic), Wrapped: err}
	}

	cards := set.Flashcards
	if len(cards) > count {
		cards = cards[:count]
	}

	g.log.Debug("generated flashcards", "topic", topic, "cards", len(cards),
		"prompt_tokens", resp.PromptTokens, "output_tokens", resp.OutputTokens)
	return &TopicSet{Topic: topic, Cards: cards}, usage, nil
}

// GenerateForTopics runs GenerateForTopic for every topic, a few at a time.
// The first failure cancels the rest and nothing is returned.
func (g *Generator) GenerateForTopics(ctx context.Context, topics []string, perTopic int) ([]TopicSet, Usage, error) {
	var total Usage
	if len(topics) == 0 {
		return nil, total, common.Invalid("at least one topic is required")
	}

	sets := make([]TopicSet, len(topics))
	usages := make([]Usage, len(topics))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelTopics)
	for i, topic := range topics {
		eg.Go(func() error {
			set, usage, err := g.GenerateForTopic(egCtx, topic, perTopic)
			usages[i] = usage
			if err != nil {
				return err
			}
			sets[i] = *set
			return nil
		})
	}
	err := eg.Wait()

	for _, u := range usages {
		total.PromptTokens += u.PromptTokens
		total.OutputTokens += u.OutputTokens
	}
	if err != nil {
		return nil, total, err
	}
	return sets, total, nil
}

// ── APIClient: Anthropic SDK ───────────────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(apiKey, model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &APIClient{client: &client, model: model}
}

// Generate makes a single call; failures are not retried.
func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.7),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

// ── MockClient: local development ──────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic, count := parseMockPrompt(userPrompt)
	return &LLMResponse{
		Content:      buildMockJSON(topic, count),
		PromptTokens: 400,
		OutputTokens: 150 * count,
	}, nil
}

// parseMockPrompt recovers the topic and count from BuildUserPrompt output.
func parseMockPrompt(prompt string) (string, int) {
	topic := "general programming"
	count := 3
	for _, line := range strings.Split(prompt, "\n") {
		if t, ok := strings.CutPrefix(line, "Topic: "); ok {
			topic = strings.TrimSpace(t)
		}
		var n int
		if _, err := fmt.Sscanf(line, "Generate exactly %d flashcards", &n); err == nil && n > 0 {
			count = n
		}
	}
	return topic, count
}

func buildMockJSON(topic string, count int) string {
	difficulties := []string{"easy", "medium", "hard"}
	angles := []string{"definition", "purpose", "common pitfall", "trade-off", "real-world use"}

	set := GeneratedSet{Flashcards: make([]GeneratedCard, count)}
	for i := range set.Flashcards {
		angle := angles[i%len(angles)]
		set.Flashcards[i] = GeneratedCard{
			Question:   fmt.Sprintf("[Mock %d] What is the %s of %s?", i+1, angle, topic),
			Answer:     fmt.Sprintf("[Mock] A concise explanation of the %s of %s.", angle, topic),
			Difficulty: difficulties[i%len(difficulties)],
		}
	}
	data, _ := json.Marshal(set)
	return string(data)
}
