package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	"github.com/ternarybob/ticketdigest/internal/services/transform"
)

// keywordEmbeddings maps text onto a small fixed vocabulary
type keywordEmbeddings struct{}

var vocabulary = []string{"printer", "network", "password", "email"}

func embedKeywords(text string) []float64 {
	lower := strings.ToLower(text)
	vector := make([]float64, len(vocabulary))
	for i, word := range vocabulary {
		vector[i] = float64(strings.Count(lower, word))
	}
	return vector
}

func (keywordEmbeddings) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = embedKeywords(text)
	}
	return out, nil
}

func (keywordEmbeddings) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return embedKeywords(query), nil
}

func (keywordEmbeddings) ModelName() string { return "keywords" }

// MockTextService is a testify mock for the text model
type MockTextService struct {
	mock.Mock
}

func (m *MockTextService) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	args := m.Called(ctx, prompt, contextText)
	return args.String(0), args.Error(1)
}

func (m *MockTextService) ModelName() string { return "mock" }

func newTestService(text *MockTextService) *Service {
	logger := arbor.NewLogger()
	return NewService(keywordEmbeddings{}, text, transform.NewService(logger), logger)
}

func TestChunk(t *testing.T) {
	svc := newTestService(&MockTextService{})

	tests := []struct {
		name     string
		sources  []models.ContentSource
		expected []string
	}{
		{
			name:     "escaped paragraphs and list items",
			sources:  []models.ContentSource{{SourceID: "42", Content: "&lt;p&gt;Printer offline&lt;/p&gt;&lt;ul&gt;&lt;li&gt;Checked cable&lt;/li&gt;&lt;li&gt; &lt;/li&gt;&lt;/ul&gt;"}},
			expected: []string{"Printer offline", "Checked cable"},
		},
		{
			name:     "plain text becomes one chunk",
			sources:  []models.ContentSource{{SourceID: "42", Content: "The network   is down"}},
			expected: []string{"The network is down"},
		},
		{
			name:     "headings are chunks",
			sources:  []models.ContentSource{{SourceID: "42", Content: "<h2>Symptoms</h2><p>No email</p>"}},
			expected: []string{"Symptoms", "No email"},
		},
		{
			name:     "nested blocks are not duplicated",
			sources:  []models.ContentSource{{SourceID: "42", Content: "<ul><li><p>Reset password</p></li></ul>"}},
			expected: []string{"Reset password"},
		},
		{
			name:     "empty sources contribute nothing",
			sources:  []models.ContentSource{{SourceID: "1", Content: ""}, {SourceID: "2", Content: "   "}},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := svc.Chunk(tt.sources)
			var texts []string
			for i, chunk := range chunks {
				texts = append(texts, chunk.Text)
				assert.Equal(t, models.SourceTypeGLPITicket, chunk.SourceType)
				assert.Equal(t, i, chunk.Ordinal)
				assert.NotEmpty(t, chunk.ID)
			}
			assert.Equal(t, tt.expected, texts)
		})
	}
}

func TestIndex_RetrievesBestChunk(t *testing.T) {
	svc := newTestService(&MockTextService{})
	ctx := context.Background()

	chunks := svc.Chunk([]models.ContentSource{{
		SourceID: "42",
		Content:  "<p>The printer on floor 2 jams</p><p>User cannot reset password</p><p>Network switch rebooted</p>",
	}})
	require.Len(t, chunks, 3)

	index, err := svc.BuildIndex(ctx, chunks)
	require.NoError(t, err)
	defer index.Close()

	docs, err := index.Retrieve(ctx, "what happened to the password?")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "User cannot reset password", docs[0].Content)
	assert.Equal(t, "42", docs[0].MetaData[MetaSourceID])
	assert.Equal(t, models.SourceTypeGLPITicket, docs[0].MetaData[MetaSourceType])
	assert.InDelta(t, 1.0, docs[0].Score(), 1e-9)
}

func TestBuildIndex_NoChunks(t *testing.T) {
	svc := newTestService(&MockTextService{})
	_, err := svc.BuildIndex(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildIndex_DuplicateChunkIDs(t *testing.T) {
	svc := newTestService(&MockTextService{})
	_, err := svc.BuildIndex(context.Background(), []models.Chunk{
		{ID: "42-0", Ordinal: 0, Text: "printer jam"},
		{ID: "42-0", Ordinal: 1, Text: "network down"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk IDs must be unique")
}

func TestRAGComplete_UsesRetrievedContext(t *testing.T) {
	text := &MockTextService{}
	text.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Printer offline since Monday") &&
			strings.Contains(prompt, "Question: Summarize this printer ticket")
	}), "").Return("Printer is offline.", nil).Once()

	svc := newTestService(text)
	out, err := svc.RAGComplete(context.Background(), []models.ContentSource{
		{SourceID: "42", Content: "<p>Printer offline since Monday</p><p>Email works</p>"},
	}, "Summarize this printer ticket")

	require.NoError(t, err)
	assert.Equal(t, "Printer is offline.", out)
	text.AssertExpectations(t)
}

func TestRAGComplete_NoTextMakesNoModelCall(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "escaped image only", content: `&lt;p&gt;&lt;img src="/front/document.send.php?docid=9"/&gt;&lt;/p&gt;`},
		{name: "whitespace markup", content: "<p> </p><ul><li>\n</li></ul>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &MockTextService{}
			svc := newTestService(text)

			out, err := svc.RAGComplete(context.Background(), []models.ContentSource{{SourceID: "42", Content: tt.content}}, "Summarize this GLPI ticket:")

			assert.ErrorIs(t, err, interfaces.ErrNoContent)
			assert.Empty(t, out)
			text.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestComplete_PassesContextThrough(t *testing.T) {
	text := &MockTextService{}
	text.On("Complete", mock.Anything, "prompt", "ctx ").Return("answer", nil).Once()

	out, err := newTestService(text).Complete(context.Background(), "prompt", "ctx ")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	text.AssertExpectations(t)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}
