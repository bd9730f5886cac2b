package ingest

import (
	"fmt"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// FilterToMinimal drops every metadata key except the source. Page text is
// left as is.
func FilterToMinimal(docs []schema.Document) []schema.Document {
	out := make([]schema.Document, len(docs))
	for i, doc := range docs {
		out[i] = schema.Document{
			PageContent: doc.PageContent,
			Metadata:    map[string]any{entity.MetadataSource: doc.Metadata[entity.MetadataSource]},
		}
	}
	return out
}

// Split cuts documents into windows of at most size characters that overlap
// by overlap characters, trying paragraph, line, word and character
// boundaries in that order. Document order is kept.
func Split(docs []schema.Document, size, overlap int) ([]schema.Document, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)

	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	return chunks, nil
}

// ToChunks assigns every split a stable ID: a name-based UUID of its source
// and its position within that source. Re-ingesting a file reuses the IDs.
func ToChunks(docs []schema.Document) []entity.Chunk {
	chunks := make([]entity.Chunk, 0, len(docs))
	ordinals := make(map[string]int)

	for _, doc := range docs {
		source, _ := doc.Metadata[entity.MetadataSource].(string)
		n := ordinals[source]
		ordinals[source] = n + 1

		chunks = append(chunks, entity.Chunk{
			ID:     chunkID(source, n),
			Text:   doc.PageContent,
			Source: source,
		})
	}

	return chunks
}

func chunkID(source string, ordinal int) string {
	return fmt.Sprintf("%s:%06d", uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)), ordinal)
}
