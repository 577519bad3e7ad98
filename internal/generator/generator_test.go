package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"textbook-rag/internal/models"
)

// fakeModel scripts the raw model output and records what it was asked.
type fakeModel struct {
	response   string
	calls      int
	lastPrompt string
	lastOpts   llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.lastPrompt = text.Text
		}
	}
	f.lastOpts = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.lastOpts)
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.response, nil
}

func testChunk(content string) models.Chunk {
	return models.Chunk{ChunkID: 7, BookID: "b1", Content: content, Chapter: "Ch 1", PageNumber: 2, Position: 0}
}

func testSource(content string) models.SourceReference {
	return models.SourceReference{ChunkID: 7, Chapter: "Ch 1", PageNumber: 2, Text: content}
}

func TestAnswerGlobalGrounded(t *testing.T) {
	model := &fakeModel{response: "X equals 42."}
	g := New(model, 500, 0.1)

	result, err := g.AnswerGlobal(context.Background(), "What does X equal?",
		[]models.Chunk{testChunk("In this system X equals 42 by definition.")},
		[]models.SourceReference{testSource("In this system X equals 42 by definition.")})
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "42")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, uint64(7), result.Sources[0].ChunkID)

	// Prompt carries the labeled context and the grounding instruction.
	assert.Contains(t, model.lastPrompt, "Context 1 (Chapter: Ch 1, Page: 2):")
	assert.Contains(t, model.lastPrompt, "ONLY the information in the context")
	assert.Contains(t, model.lastPrompt, models.RefusalMessage)
}

func TestAnswerGlobalGenerationParameters(t *testing.T) {
	model := &fakeModel{response: "fine"}
	g := New(model, 500, 0.1)

	_, err := g.AnswerGlobal(context.Background(), "q", []models.Chunk{testChunk("c")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 500, model.lastOpts.MaxTokens)
	assert.InDelta(t, 0.1, model.lastOpts.Temperature, 1e-9)
	assert.Equal(t, []string{"Question:", "Context:"}, model.lastOpts.StopWords)
}

func TestAnswerGlobalNoChunksSkipsProvider(t *testing.T) {
	model := &fakeModel{response: "should never be used"}
	g := New(model, 500, 0.1)

	result, err := g.AnswerGlobal(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RefusalMessage, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Zero(t, model.calls)
}

func TestAnswerGlobalNormalizesModelRefusal(t *testing.T) {
	model := &fakeModel{response: "Unfortunately the context DOES NOT CONTAIN ENOUGH INFORMATION to say."}
	g := New(model, 500, 0.1)

	result, err := g.AnswerGlobal(context.Background(), "q", []models.Chunk{testChunk("c")}, []models.SourceReference{testSource("c")})
	require.NoError(t, err)
	assert.Equal(t, models.RefusalMessage, result.Answer)
	assert.Empty(t, result.Sources)
}

func TestAnswerGlobalRejectsHedgedFallbacks(t *testing.T) {
	cases := []string{
		"I'm sorry, I can't help with that.",
		"I don't know the answer to this.",
		"That is not mentioned in the text.",
		"We cannot determine this from the given material.",
	}
	for _, response := range cases {
		t.Run(response, func(t *testing.T) {
			g := New(&fakeModel{response: response}, 500, 0.1)
			result, err := g.AnswerGlobal(context.Background(), "q",
				[]models.Chunk{testChunk("c")}, []models.SourceReference{testSource("c")})
			require.NoError(t, err)
			assert.Equal(t, models.RefusalMessage, result.Answer)
			assert.Empty(t, result.Sources)
		})
	}
}

func TestAnswerSelectedTextGrounded(t *testing.T) {
	model := &fakeModel{response: "The robot has three joints."}
	g := New(model, 500, 0.1)

	result, err := g.AnswerSelectedText(context.Background(), "How many joints?", "The robot arm has three joints.")
	require.NoError(t, err)
	assert.Equal(t, "The robot has three joints.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "The robot arm has three joints.", result.Sources[0].Text)
	assert.Equal(t, []string{"Question:", "Selected Text:"}, model.lastOpts.StopWords)
	assert.Contains(t, model.lastPrompt, "Selected Text:")
}

func TestAnswerSelectedTextEmptyInputSkipsProvider(t *testing.T) {
	for _, selected := range []string{"", "   ", "\n\t "} {
		model := &fakeModel{response: "unused"}
		g := New(model, 500, 0.1)

		result, err := g.AnswerSelectedText(context.Background(), "q", selected)
		require.NoError(t, err)
		assert.Equal(t, models.RefusalMessage, result.Answer)
		assert.Empty(t, result.Sources)
		assert.Zero(t, model.calls, "no generation call may be made for empty selected text")
	}
}

func TestAnswerSelectedTextFallbackNormalized(t *testing.T) {
	model := &fakeModel{response: "There is no information about that here."}
	g := New(model, 500, 0.1)

	result, err := g.AnswerSelectedText(context.Background(), "q", "some passage")
	require.NoError(t, err)
	assert.Equal(t, models.RefusalMessage, result.Answer)
	assert.Empty(t, result.Sources)
}

// The QueryResult invariant: empty sources if and only if the canonical
// refusal answer.
func TestRefusalSourceCoupling(t *testing.T) {
	grounded := &fakeModel{response: "A clear grounded answer."}
	g := New(grounded, 500, 0.1)

	result, err := g.AnswerGlobal(context.Background(), "q",
		[]models.Chunk{testChunk("c")}, []models.SourceReference{testSource("c")})
	require.NoError(t, err)
	assert.NotEqual(t, models.RefusalMessage, result.Answer)
	assert.NotEmpty(t, result.Sources)

	refusing := New(&fakeModel{response: "i don't know"}, 500, 0.1)
	result, err = refusing.AnswerGlobal(context.Background(), "q",
		[]models.Chunk{testChunk("c")}, []models.SourceReference{testSource("c")})
	require.NoError(t, err)
	assert.Equal(t, models.RefusalMessage, result.Answer)
	assert.Empty(t, result.Sources)
}

func TestTruncatedSelectedTextSource(t *testing.T) {
	long := ""
	for len(long) < 300 {
		long += "selected passage text "
	}
	model := &fakeModel{response: "An answer."}
	g := New(model, 500, 0.1)

	result, err := g.AnswerSelectedText(context.Background(), "q", long)
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Len(t, result.Sources[0].Text, models.SourceExcerptLength+3)
}
