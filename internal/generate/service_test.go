package generate

import (
	"context"
	"strings"
	"testing"
	"time"

	"mathgenie/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockModel) Provider() string { return "Mock" }

func validRequest(t ContentType) Request {
	return Request{
		Type: t,
		Metadata: Metadata{
			Grade:      "Grade 4",
			Unit:       "Fractions",
			GameType:   "Quiz",
			Difficulty: "Easy",
		},
	}
}

func TestGenerate_ValidationRejectsBeforeModelCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "game missing difficulty",
			req: Request{Type: TypeGame, Metadata: Metadata{
				Grade: "Grade 4", Unit: "Fractions", GameType: "Quiz",
			}},
		},
		{
			name: "game missing format",
			req: Request{Type: TypeGame, Metadata: Metadata{
				Grade: "Grade 4", Unit: "Fractions", Difficulty: "Easy",
			}},
		},
		{
			name: "simulation missing unit",
			req: Request{Type: TypeSimulation, Metadata: Metadata{
				Grade: "Grade 4", GameType: "Interactive", Difficulty: "Easy",
			}},
		},
		{
			name: "webtoon missing grade",
			req:  Request{Type: TypeWebtoon, Metadata: Metadata{Unit: "Fractions"}},
		},
		{
			name: "unknown type",
			req: Request{Type: "podcast", Metadata: Metadata{
				Grade: "Grade 4", Unit: "Fractions", GameType: "Quiz", Difficulty: "Easy",
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			model := new(mockModel)
			svc := NewService(model, time.Minute)

			_, err := svc.Generate(context.Background(), tt.req)
			require.Error(t, err)

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

			// The model must never be consulted for an invalid request.
			model.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerate_WebtoonNeedsOnlyGradeAndUnit(t *testing.T) {
	model := new(mockModel)
	model.On("GenerateContent", mock.Anything, mock.Anything).
		Return("<!DOCTYPE html><html></html>", nil)
	svc := NewService(model, time.Minute)

	res, err := svc.Generate(context.Background(), Request{
		Type:     TypeWebtoon,
		Metadata: Metadata{Grade: "Grade 5", Unit: "Decimals"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Decimals 웹툰", res.Title)
	model.AssertExpectations(t)
}

func TestGenerate_PostProcessesModelOutput(t *testing.T) {
	model := new(mockModel)
	model.On("GenerateContent", mock.Anything, mock.Anything).
		Return("```html\n<html><body>game</body></html>\n```", nil)
	svc := NewService(model, time.Minute)

	res, err := svc.Generate(context.Background(), validRequest(TypeGame))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.HTML, "<!DOCTYPE html>"))
	assert.NotContains(t, res.HTML, "```")
	assert.Equal(t, "Fractions - Quiz", res.Title)
	assert.Equal(t, "Grade 4", res.Metadata["grade"])
}

func TestGenerate_QuotaErrorPassesThrough(t *testing.T) {
	model := new(mockModel)
	model.On("GenerateContent", mock.Anything, mock.Anything).
		Return("", models.NewQuotaError("quota exhausted"))
	svc := NewService(model, time.Minute)

	_, err := svc.Generate(context.Background(), validRequest(TypeSimulation))
	require.Error(t, err)
	assert.True(t, models.IsQuotaError(err))
}

func TestRegenerate_AppendsModificationToNotes(t *testing.T) {
	model := new(mockModel)
	var captured string
	model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		captured = prompt
		return true
	})).Return("<!DOCTYPE html><html></html>", nil)
	svc := NewService(model, time.Minute)

	req := validRequest(TypeGame)
	req.Metadata.Description = "use a space theme"

	_, err := svc.Regenerate(context.Background(), req, "make the timer slower")
	require.NoError(t, err)

	assert.Contains(t, captured, "use a space theme")
	assert.Contains(t, captured, "수정 요청: make the timer slower")
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html fence", "```html\n<html></html>\n```", "<html></html>"},
		{"bare fence", "```\n<html></html>\n```", "<html></html>"},
		{"no fence", "<html></html>", "<html></html>"},
		{"interior backticks kept", "<html>`code`</html>", "<html>`code`</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestEnsureDoctype(t *testing.T) {
	assert.Equal(t, "<!DOCTYPE html>\n<html></html>", EnsureDoctype("<html></html>"))

	already := "<!DOCTYPE html>\n<html></html>"
	assert.Equal(t, already, EnsureDoctype(already))

	// Case-insensitive detection.
	lower := "<!doctype html><html></html>"
	assert.Equal(t, lower, EnsureDoctype(lower))
}

func TestBuildPrompt_IncludesMetadata(t *testing.T) {
	p := BuildPrompt(TypeGame, Metadata{
		Grade: "Grade 4", Unit: "Fractions", GameType: "Quiz", Difficulty: "Easy",
	})
	assert.Contains(t, p, "Grade 4")
	assert.Contains(t, p, "Fractions")
	assert.Contains(t, p, "Quiz")
	assert.Contains(t, p, "Easy")
	assert.Contains(t, p, "<!DOCTYPE html>")

	// Optional notes only appear when present.
	assert.NotContains(t, p, "추가 요청사항")

	withNotes := BuildPrompt(TypeGame, Metadata{
		Grade: "Grade 4", Unit: "Fractions", GameType: "Quiz", Difficulty: "Easy",
		Description: "space theme",
	})
	assert.Contains(t, withNotes, "space theme")
}
