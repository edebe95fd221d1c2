package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

// answerPrefill opens the JSON object on the assistant turn so the reply is the object body
const answerPrefill = "{"

type claude struct {
	client adapter.Claude
	system string
}

// NewClaude creates a Generator backed by the Claude Messages API. The
// Messages API has no response schema, so the schema is given in the system
// prompt and the assistant turn is prefilled with the opening brace.
func NewClaude(client adapter.Claude) (Generator, error) {
	schema, err := answerJSONSchema()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal answer schema")
	}

	return &claude{
		client: client,
		system: "Reply with a single JSON object that conforms to this JSON schema, and nothing else:\n" + string(raw),
	}, nil
}

func (c *claude) Generate(ctx context.Context, input Input) (string, error) {
	prompt, err := buildPrompt(input)
	if err != nil {
		return "", err
	}

	var blocks []anthropic.ContentBlockParamUnion
	if input.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			input.Image.MIMEType,
			base64.StdEncoding.EncodeToString(input.Image.Data),
		))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	msg, err := c.client.CreateMessage(ctx, anthropic.MessageNewParams{
		System: []anthropic.TextBlockParam{{Text: c.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(answerPrefill)),
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer with claude")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", goerr.New("no text in claude response", goerr.V("stop_reason", msg.StopReason))
	}

	return parseAnswer(answerPrefill + text.String())
}
