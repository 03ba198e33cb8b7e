package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultOllamaURL        = "http://localhost:11434"
	defaultOllamaChatModel  = "llama3.1"
	defaultOllamaEmbedModel = "nomic-embed-text"
)

// EinoClient adapts an Eino chat model and embedder to Client.
type EinoClient struct {
	config   *ClientConfig
	chat     model.BaseChatModel
	embedder embedding.Embedder
}

// NewEinoClient creates a client backed by a local Ollama server.
func NewEinoClient(ctx context.Context, config *ClientConfig) (*EinoClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOllamaURL
	}
	if config.ChatModel == "" {
		config.ChatModel = defaultOllamaChatModel
	}
	if config.EmbedModel == "" {
		config.EmbedModel = defaultOllamaEmbedModel
	}
	if config.Dim == 0 {
		config.Dim = 768
	}

	chat, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: config.BaseURL,
		Model:   config.ChatModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model: %w", err)
	}
	emb, err := ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
		BaseURL: config.BaseURL,
		Model:   config.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return NewEinoClientWith(config, chat, emb), nil
}

// NewEinoClientWith wraps already constructed Eino components.
func NewEinoClientWith(config *ClientConfig, chat model.BaseChatModel, emb embedding.Embedder) *EinoClient {
	return &EinoClient{config: config, chat: chat, embedder: emb}
}

func (c *EinoClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages")
	}
	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			in = append(in, schema.SystemMessage(m.Content))
		case RoleAssistant:
			in = append(in, schema.AssistantMessage(m.Content, nil))
		default:
			in = append(in, schema.UserMessage(m.Content))
		}
	}

	resp, err := c.chat.Generate(ctx, in)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if resp == nil {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Content), nil
}

func (c *EinoClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	res, err := c.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(res) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([][]float32, len(res))
	for i, v := range res {
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = f
	}
	return out, nil
}

func (c *EinoClient) Dim() int {
	return c.config.Dim
}
