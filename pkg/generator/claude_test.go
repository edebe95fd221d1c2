package generator_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/ditto/pkg/generator"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/gt"
)

// mockClaude is a mock implementation of adapter.Claude for testing
type mockClaude struct {
	createFunc func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

func (m *mockClaude) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func claudeResponse(texts ...string) *anthropic.Message {
	msg := &anthropic.Message{}
	for _, text := range texts {
		msg.Content = append(msg.Content, anthropic.ContentBlockUnion{Type: "text", Text: text})
	}
	return msg
}

func TestClaudeGenerate(t *testing.T) {
	t.Run("text question", func(t *testing.T) {
		var got anthropic.MessageNewParams
		client := &mockClaude{
			createFunc: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
				got = params
				// the reply continues the prefilled brace
				return claudeResponse(`"answer": "34"}`), nil
			},
		}

		gen, err := generator.NewClaude(client)
		gt.NoError(t, err)

		answer, err := gen.Generate(context.Background(), generator.Input{
			Question: "What is your age?",
			Profile:  "- Date of Birth: 1991-05-02",
		})
		gt.NoError(t, err)
		gt.Equal(t, answer, "34")

		gt.A(t, got.System).Length(1)
		gt.S(t, got.System[0].Text).Contains(`"answer"`)

		gt.A(t, got.Messages).Length(2)
		gt.Equal(t, got.Messages[0].Role, anthropic.MessageParamRoleUser)
		gt.A(t, got.Messages[0].Content).Length(1)
		gt.V(t, got.Messages[0].Content[0].OfText).NotNil()
		gt.S(t, got.Messages[0].Content[0].OfText.Text).Contains("What is your age?")
		gt.S(t, got.Messages[0].Content[0].OfText.Text).Contains("- Date of Birth: 1991-05-02")

		gt.Equal(t, got.Messages[1].Role, anthropic.MessageParamRoleAssistant)
		gt.Equal(t, got.Messages[1].Content[0].OfText.Text, "{")
	})

	t.Run("image question sends base64 block", func(t *testing.T) {
		var got anthropic.MessageNewParams
		client := &mockClaude{
			createFunc: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
				got = params
				return claudeResponse(`"answer":`, ` "Option B"}`), nil
			},
		}

		gen, err := generator.NewClaude(client)
		gt.NoError(t, err)

		data := []byte{0x89, 'P', 'N', 'G'}
		answer, err := gen.Generate(context.Background(), generator.Input{
			Image:   &model.Image{MIMEType: "image/png", Data: data},
			Profile: "- Gender: female",
		})
		gt.NoError(t, err)
		gt.Equal(t, answer, "Option B")

		blocks := got.Messages[0].Content
		gt.A(t, blocks).Length(2)
		gt.V(t, blocks[0].OfImage).NotNil()
		gt.V(t, blocks[0].OfImage.Source.OfBase64).NotNil()
		gt.Equal(t, blocks[0].OfImage.Source.OfBase64.Data, base64.StdEncoding.EncodeToString(data))
		gt.S(t, blocks[1].OfText.Text).Contains("attached image")
	})
}

func TestClaudeGenerateFailures(t *testing.T) {
	tests := []struct {
		name string
		resp *anthropic.Message
		err  error
	}{
		{name: "api error", err: errors.New("overloaded")},
		{name: "no text", resp: &anthropic.Message{}},
		{name: "broken json", resp: claudeResponse(`answer: 34`)},
		{name: "blank answer", resp: claudeResponse(`"answer": " "}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClaude{
				createFunc: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
					return tt.resp, tt.err
				},
			}
			gen, err := generator.NewClaude(client)
			gt.NoError(t, err)

			_, err = gen.Generate(context.Background(), generator.Input{Question: "q", Profile: "p"})
			gt.Error(t, err)
		})
	}
}
