// Package generator produces answers to survey questions with an LLM.
package generator

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/answer.md
var answerPromptRaw string

var answerPrompt = template.Must(template.New("answer").Parse(answerPromptRaw))

// Input is what a generator needs to answer one question
type Input struct {
	Question string
	Image    *model.Image
	Profile  string
}

// Generator produces the answer text for a question
type Generator interface {
	Generate(ctx context.Context, input Input) (string, error)
}

type answerOutput struct {
	Answer string `json:"answer" jsonschema:"The answer to the survey question. For multiple-choice questions, exactly one of the offered options."`
}

type promptData struct {
	Profile  string
	Question string
	HasImage bool
}

func buildPrompt(input Input) (string, error) {
	var buf bytes.Buffer
	data := promptData{
		Profile:  input.Profile,
		Question: strings.TrimSpace(input.Question),
		HasImage: input.Image != nil,
	}
	if err := answerPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute answer prompt")
	}
	return buf.String(), nil
}

func parseAnswer(raw string) (string, error) {
	var out answerOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", goerr.Wrap(err, "failed to unmarshal answer JSON", goerr.V("json", raw))
	}
	if strings.TrimSpace(out.Answer) == "" {
		return "", goerr.New("empty answer", goerr.V("json", raw))
	}
	return out.Answer, nil
}
