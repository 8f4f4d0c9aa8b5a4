package ai

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client     *openai.Client
	model      string
	embedModel openai.EmbeddingModel
}

func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	embedModel := openai.EmbeddingModel(os.Getenv("OPENAI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = openai.SmallEmbedding3
	}

	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		model:      model,
		embedModel: embedModel,
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embedModel,
	})
	if err != nil {
		log.Println("[ai] embedding error:", err)
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("ai: empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		log.Println("[ai] OpenAI error:", err)
		return "", err
	}

	if len(resp.Choices) == 0 {
		log.Println("[ai] empty choices")
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
