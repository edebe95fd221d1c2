package generator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/ditto/pkg/generator"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/gt"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// mockGemini is a mock implementation of adapter.Gemini for testing
type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGemini) Embedding(ctx context.Context, texts []string, dimensionality int) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

// mockOpenAI is a mock implementation of adapter.OpenAI for testing
type mockOpenAI struct {
	chatFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *mockOpenAI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return openai.ChatCompletionResponse{}, errors.New("not implemented")
}

func (m *mockOpenAI) Embedding(ctx context.Context, texts []string, dimensions int) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOpenAI) Model() string {
	return "test-model"
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig

	client := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotContents = contents
			gotConfig = config
			return textResponse(`{"answer":"34"}`), nil
		},
	}

	gen, err := generator.NewGemini(client)
	gt.NoError(t, err)

	answer, err := gen.Generate(context.Background(), generator.Input{
		Question: "What is your age?",
		Profile:  "- Date of Birth: 1990-01-01",
	})
	gt.NoError(t, err)
	gt.Equal(t, answer, "34")

	gt.Equal(t, gotConfig.ResponseMIMEType, "application/json")
	gt.V(t, gotConfig.ResponseSchema).NotNil()
	gt.Map(t, gotConfig.ResponseSchema.Properties).HasKey("answer")
	gt.Equal(t, gotConfig.ResponseSchema.Type, genai.TypeObject)

	gt.A(t, gotContents).Length(1)
	gt.A(t, gotContents[0].Parts).Length(1)
	gt.S(t, gotContents[0].Parts[0].Text).Contains("What is your age?")
	gt.S(t, gotContents[0].Parts[0].Text).Contains("- Date of Birth: 1990-01-01")
}

func TestGeminiGenerateWithImage(t *testing.T) {
	var gotContents []*genai.Content
	client := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotContents = contents
			return textResponse(`{"answer":"Yes"}`), nil
		},
	}

	gen, err := generator.NewGemini(client)
	gt.NoError(t, err)

	answer, err := gen.Generate(context.Background(), generator.Input{
		Image:   &model.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		Profile: "- Gender: female",
	})
	gt.NoError(t, err)
	gt.Equal(t, answer, "Yes")

	parts := gotContents[0].Parts
	gt.A(t, parts).Length(2)
	gt.S(t, parts[0].Text).Contains("attached image")
	gt.S(t, parts[0].Text).NotContains("## Question")
	gt.V(t, parts[1].InlineData).NotNil()
	gt.Equal(t, parts[1].InlineData.MIMEType, "image/png")
}

func TestGeminiGenerateFailures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "api error", err: errors.New("unavailable")},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{name: "broken json", resp: textResponse(`answer: 34`)},
		{name: "blank answer", resp: textResponse(`{"answer":"   "}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockGemini{
				generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			gen, err := generator.NewGemini(client)
			gt.NoError(t, err)

			_, err = gen.Generate(context.Background(), generator.Input{Question: "q", Profile: "p"})
			gt.Error(t, err)
		})
	}
}

func TestOpenAIGenerate(t *testing.T) {
	t.Run("text question", func(t *testing.T) {
		var got openai.ChatCompletionRequest
		client := &mockOpenAI{
			chatFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				got = req
				return openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{
						{Message: openai.ChatCompletionMessage{Content: `{"answer":"Engineer"}`}},
					},
				}, nil
			},
		}

		gen, err := generator.NewOpenAI(client)
		gt.NoError(t, err)

		answer, err := gen.Generate(context.Background(), generator.Input{
			Question: "What is your occupation?",
			Profile:  "- Occupation: Engineer",
		})
		gt.NoError(t, err)
		gt.Equal(t, answer, "Engineer")

		gt.Equal(t, got.Model, "test-model")
		gt.A(t, got.Messages).Length(1)
		gt.S(t, got.Messages[0].Content).Contains("What is your occupation?")
		gt.V(t, got.ResponseFormat).NotNil()
		gt.Equal(t, got.ResponseFormat.Type, openai.ChatCompletionResponseFormatTypeJSONSchema)
	})

	t.Run("image question uses multi content", func(t *testing.T) {
		var got openai.ChatCompletionRequest
		client := &mockOpenAI{
			chatFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				got = req
				return openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{
						{Message: openai.ChatCompletionMessage{Content: `{"answer":"B"}`}},
					},
				}, nil
			},
		}

		gen, err := generator.NewOpenAI(client)
		gt.NoError(t, err)

		_, err = gen.Generate(context.Background(), generator.Input{
			Question: "Pick one",
			Image:    &model.Image{MIMEType: "image/jpeg", Data: []byte("jpeg")},
			Profile:  "p",
		})
		gt.NoError(t, err)

		parts := got.Messages[0].MultiContent
		gt.A(t, parts).Length(2)
		gt.Equal(t, parts[1].Type, openai.ChatMessagePartTypeImageURL)
		gt.S(t, parts[1].ImageURL.URL).Contains("data:image/jpeg;base64,")
	})

	t.Run("no choices", func(t *testing.T) {
		client := &mockOpenAI{
			chatFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{}, nil
			},
		}
		gen, err := generator.NewOpenAI(client)
		gt.NoError(t, err)

		_, err = gen.Generate(context.Background(), generator.Input{Question: "q", Profile: "p"})
		gt.Error(t, err)
	})
}
