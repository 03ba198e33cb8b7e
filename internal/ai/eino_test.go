package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	got   []*schema.Message
	reply string
	err   error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeEmbedder struct {
	vecs [][]float64
	err  error
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vecs, nil
}

func TestEinoClient_Complete(t *testing.T) {
	chat := &fakeChatModel{reply: "  answer  "}
	client := NewEinoClientWith(&ClientConfig{Dim: 2}, chat, &fakeEmbedder{})

	got, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "question"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "answer" {
		t.Errorf("Expected trimmed answer, got %q", got)
	}
	if len(chat.got) != 2 {
		t.Fatalf("Expected 2 messages forwarded, got %d", len(chat.got))
	}
	if chat.got[0].Role != schema.System || chat.got[1].Role != schema.User {
		t.Errorf("Unexpected roles: %s, %s", chat.got[0].Role, chat.got[1].Role)
	}
	if chat.got[1].Content != "question" {
		t.Errorf("Expected user content 'question', got %q", chat.got[1].Content)
	}
}

func TestEinoClient_CompleteError(t *testing.T) {
	client := NewEinoClientWith(&ClientConfig{}, &fakeChatModel{err: errors.New("boom")}, &fakeEmbedder{})
	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Error("Expected error from failing chat model")
	}
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Error("Expected error for empty messages")
	}
}

func TestEinoClient_Embed(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float64{{0.5, 0.25}, {1, 0}}}
	client := NewEinoClientWith(&ClientConfig{Dim: 2}, &fakeChatModel{}, emb)

	got, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 || got[0][0] != 0.5 || got[0][1] != 0.25 || got[1][0] != 1 {
		t.Errorf("Unexpected vectors: %v", got)
	}

	if _, err := client.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("Expected count mismatch error")
	}
	if client.Dim() != 2 {
		t.Errorf("Expected Dim 2, got %d", client.Dim())
	}
}
