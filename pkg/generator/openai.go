package generator

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

type openAI struct {
	client adapter.OpenAI
	schema *jsonschema.Schema
}

// NewOpenAI creates a Generator backed by OpenAI chat completion with a JSON schema response format
func NewOpenAI(client adapter.OpenAI) (Generator, error) {
	schema, err := answerJSONSchema()
	if err != nil {
		return nil, err
	}
	return &openAI{client: client, schema: schema}, nil
}

func (o *openAI) Generate(ctx context.Context, input Input) (string, error) {
	prompt, err := buildPrompt(input)
	if err != nil {
		return "", err
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if input.Image != nil {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    input.Image.DataURI(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		msg.Content = prompt
	}

	req := openai.ChatCompletionRequest{
		Model:    o.client.Model(),
		Messages: []openai.ChatCompletionMessage{msg},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "survey_answer",
				Schema: o.schema,
				Strict: true,
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer with openai")
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("no choices in openai response")
	}

	return parseAnswer(resp.Choices[0].Message.Content)
}
