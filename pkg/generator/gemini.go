package generator

import (
	"context"

	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type gemini struct {
	client adapter.Gemini
	schema *genai.Schema
}

// NewGemini creates a Generator backed by Gemini structured output
func NewGemini(client adapter.Gemini) (Generator, error) {
	js, err := answerJSONSchema()
	if err != nil {
		return nil, err
	}
	schema, err := toGenaiSchema(js)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert answer schema")
	}

	return &gemini{client: client, schema: schema}, nil
}

func (g *gemini) Generate(ctx context.Context, input Input) (string, error) {
	prompt, err := buildPrompt(input)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if input.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(input.Image.Data, input.Image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   g.schema,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	resp, err := g.client.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer with gemini")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("invalid response structure from gemini")
	}

	return parseAnswer(resp.Candidates[0].Content.Parts[0].Text)
}
