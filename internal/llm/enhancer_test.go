package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/lighting-importer/internal/models"
	"github.com/maltedev/lighting-importer/internal/parser"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	args := m.Called(ctx, systemPrompt, userContent)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPage(t *testing.T) *parser.Page {
	t.Helper()
	page, err := parser.Normalize(`<html><body><h1>Люстра Arte Lamp Como</h1>
<div class="characteristics"><table><tr><td>Высота</td><td>45 см</td></tr></table></div>
</body></html>`, "https://shop.example/p/1")
	require.NoError(t, err)
	return page
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}```", `{"a":1}`},
		{"no fence", `  {"a":1}  `, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestParseResponse(t *testing.T) {
	raw := "```json\n" + `{
  "name": "Люстра Como",
  "price": 12500,
  "brand": "unknown",
  "article": null,
  "productType": "ceiling_chandelier",
  "socketType": "E99",
  "lampType": "LED",
  "height": 450,
  "hasRemote": true,
  "isDimmable": false,
  "collection": "",
  "mood": "calm"
}` + "\n```"

	fields, err := ParseResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Люстра Como", fields[models.FieldName])
	assert.Equal(t, float64(12500), fields[models.FieldPrice])
	assert.Equal(t, "ceiling_chandelier", fields[models.FieldProductType])
	assert.Equal(t, "LED", fields[models.FieldLampType])
	assert.Equal(t, float64(450), fields[models.FieldHeight])
	assert.Equal(t, true, fields[models.FieldHasRemote])
	assert.Equal(t, false, fields[models.FieldIsDimmable])

	assert.NotContains(t, fields, models.FieldBrand, "placeholder values are dropped")
	assert.NotContains(t, fields, models.FieldArticle, "nulls are dropped")
	assert.NotContains(t, fields, models.FieldSocketType, "values outside the enumeration are dropped")
	assert.NotContains(t, fields, models.FieldCollection)
	assert.NotContains(t, fields, "mood")
}

func TestParseResponse_WithSurroundingProse(t *testing.T) {
	fields, err := ParseResponse(`Here is the data: {"brand": "Maytoni"} Hope it helps.`)
	require.NoError(t, err)
	assert.Equal(t, "Maytoni", fields[models.FieldBrand])
}

func TestParseResponse_RejectsImplausibleBrand(t *testing.T) {
	tests := []struct {
		raw   string
		brand string
	}{
		{`{"brand": "Italy"}`, ""},
		{`{"brand": "Collection 2024"}`, ""},
		{`{"brand": "производство Китай"}`, ""},
		{`{"brand": "Maytoni"}`, "Maytoni"},
		{`{"brand": "Arte Lamp"}`, "Arte Lamp"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fields, err := ParseResponse(tt.raw)
			require.NoError(t, err)
			if tt.brand == "" {
				assert.NotContains(t, fields, models.FieldBrand)
			} else {
				assert.Equal(t, tt.brand, fields[models.FieldBrand])
			}
		})
	}
}

func TestParseResponse_Invalid(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken"} {
		_, err := ParseResponse(raw)
		assert.ErrorIs(t, err, ErrNoJSON, raw)
	}
}

func TestEnhancer_Enhance(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, systemPrompt, mock.MatchedBy(func(content string) bool {
		return containsAll(content, "https://shop.example/p/1", "Люстра Arte Lamp Como", "Высота")
	})).Return(`{"brand":"Arte Lamp","lampCount":5}`, nil)

	enhancer := NewEnhancer(completer, time.Second, testLogger())
	fields, err := enhancer.Enhance(context.Background(), testPage(t))

	require.NoError(t, err)
	assert.Equal(t, "Arte Lamp", fields[models.FieldBrand])
	assert.Equal(t, float64(5), fields[models.FieldLampCount])
	completer.AssertExpectations(t)
}

func TestEnhancer_CompleterError(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("rate limited"))

	enhancer := NewEnhancer(completer, time.Second, testLogger())
	fields, err := enhancer.Enhance(context.Background(), testPage(t))

	require.Error(t, err)
	assert.Nil(t, fields)

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "https://shop.example/p/1", llmErr.URL)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEnhancer_AppliesTimeout(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		}).
		Return("not json", nil)

	enhancer := NewEnhancer(completer, 50*time.Millisecond, testLogger())
	_, err := enhancer.Enhance(context.Background(), testPage(t))

	assert.ErrorIs(t, err, ErrNoJSON)
	completer.AssertExpectations(t)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
