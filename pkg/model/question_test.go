package model_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestParseDataURI(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	img, err := model.ParseDataURI(uri)
	gt.NoError(t, err)
	gt.Equal(t, img.MIMEType, "image/png")
	gt.Equal(t, string(img.Data), string(png))
	gt.Equal(t, img.DataURI(), uri)
}

func TestParseDataURIInvalid(t *testing.T) {
	testCases := []struct {
		name string
		uri  string
	}{
		{"not a data uri", "https://example.com/a.png"},
		{"no payload", "data:image/png;base64"},
		{"not base64", "data:image/png,abcd"},
		{"broken base64", "data:image/png;base64,!!!"},
		{"not an image", "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hi"))},
		{"empty image", "data:image/png;base64,"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.ParseDataURI(tc.uri)
			gt.Error(t, err)
			gt.Equal(t, errors.Is(err, model.ErrInvalidInput), true)
		})
	}
}

func TestImageTooLarge(t *testing.T) {
	img := &model.Image{
		MIMEType: "image/jpeg",
		Data:     make([]byte, model.MaxImageSize+1),
	}
	err := img.Validate()
	gt.Error(t, err)
	gt.Equal(t, errors.Is(err, model.ErrInvalidInput), true)
}

func TestQuestionHasText(t *testing.T) {
	gt.Equal(t, model.Question{Text: "What is your age?"}.HasText(), true)
	gt.Equal(t, model.Question{Text: "  \n\t"}.HasText(), false)
	gt.Equal(t, model.Question{}.HasText(), false)

	gt.Equal(t, model.Question{Text: " "}.Label(), model.ImageQuestionPlaceholder)
	gt.Equal(t, model.Question{Text: "Q"}.Label(), "Q")
}

func TestQuestionKey(t *testing.T) {
	gt.Equal(t, model.QuestionKey("What is your age?"), model.QuestionKey("  what IS your AGE? "))
	gt.NotEqual(t, model.QuestionKey("What is your age?"), model.QuestionKey("What is your income?"))
	gt.Equal(t, model.QuestionKeyHash("What is your age?"), model.QuestionKeyHash("what is your age?"))
	gt.Equal(t, len(model.QuestionKeyHash("x")), 64)
}

func TestFindByKey(t *testing.T) {
	history := []*model.QuestionRecord{
		{ID: "1", Question: "What is your age?", Answer: "34"},
		{ID: "2", Question: "What is your income?", Answer: "$50k"},
		{ID: "3", Question: "WHAT IS YOUR AGE?", Answer: "35"},
	}

	found := model.FindByKey(history, "what is your age?")
	gt.V(t, found).NotNil()
	gt.Equal(t, found.ID, model.RecordID("3"))

	gt.Equal(t, model.FindByKey(history, "How old are you?") == nil, true)
	gt.Equal(t, model.FindByKey(history, "   ") == nil, true)
}

func TestProfileFormat(t *testing.T) {
	p := &model.Profile{
		Income:     "$50,000 - $75,000",
		Occupation: "Engineer",
		Country:    "Germany",
		State:      "Bavaria",
		Gender:     "Female",
	}

	out := p.Format()
	gt.S(t, out).Contains("- Annual Income: $50,000 - $75,000\n")
	gt.S(t, out).Contains("- Occupation: Engineer\n")
	gt.S(t, out).Contains("- Location: Bavaria, Germany\n")
	gt.S(t, out).Contains("- Gender: Female\n")
	gt.S(t, out).NotContains("Ethnicity")
	gt.Equal(t, strings.Count(out, "\n"), 4)
}
