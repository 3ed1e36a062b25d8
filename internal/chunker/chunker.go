package chunker

import "fmt"

// DefaultThreshold is the largest body, in runes, stored as a single record.
const DefaultThreshold = 30000

// Chunk is one contiguous slice of a document body.
type Chunk struct {
	Index   int    // Zero-based position in the original text.
	Total   int    // Number of chunks in the document.
	Content string // Exactly one slice of the original text.
}

// Plan describes how a body is stored.
type Plan struct {
	NeedsSplit  bool
	TotalChunks int
	Placeholder string // Synthetic body of the parent record when split.
	Chunks      []Chunk
}

// PlanText decides whether text exceeds threshold and, if so, slices it into
// ordered chunks of at most threshold runes. Concatenating the chunks in
// index order yields text unchanged. A threshold <= 0 uses DefaultThreshold.
func PlanText(text string, threshold int) Plan {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	runes := []rune(text)
	if len(runes) <= threshold {
		return Plan{}
	}

	total := (len(runes) + threshold - 1) / threshold
	chunks := make([]Chunk, 0, total)
	for i := range total {
		start := i * threshold
		end := min(start+threshold, len(runes))
		chunks = append(chunks, Chunk{
			Index:   i,
			Total:   total,
			Content: string(runes[start:end]),
		})
	}

	return Plan{
		NeedsSplit:  true,
		TotalChunks: total,
		Placeholder: fmt.Sprintf("Document split into %d chunks", total),
		Chunks:      chunks,
	}
}

// ChunkID derives the record id of chunk index of parentID.
func ChunkID(parentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", parentID, index)
}

// ChunkFileName annotates a file name for chunk index of total.
func ChunkFileName(fileName string, index, total int) string {
	return fmt.Sprintf("%s (chunk %d of %d)", fileName, index+1, total)
}
