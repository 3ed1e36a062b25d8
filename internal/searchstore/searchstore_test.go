package searchstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestAutoFuzziness(t *testing.T) {
	tests := []struct {
		term string
		want int
	}{
		{"", 0},
		{"ab", 0},
		{"abc", 1},
		{"total", 1},
		{"invoice", 2},
		{"été", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AutoFuzziness(tt.term), "term %q", tt.term)
	}
}

func TestBackendError_UnwrapsKind(t *testing.T) {
	err := fmt.Errorf("put: %w", &BackendError{
		Op:      "put doc-1",
		Status:  503,
		Reason:  "unavailable_shards_exception",
		Message: "primary shard is not active",
		Kind:    ErrUnavailable,
	})

	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, Retryable(err))
	assert.Contains(t, err.Error(), "status 503")

	var be *BackendError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, "unavailable_shards_exception", be.Reason)
}

func TestBackendError_TruncatesOnRuneBoundary(t *testing.T) {
	// Each "é" is two bytes, so a byte cut at 300 would split one.
	err := &BackendError{Op: "search", Message: "x" + strings.Repeat("é", 400), Kind: ErrRejected}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Equal(t, len("search: ")+300+len("..."), utf8.RuneCountInString(msg))
}

func TestRetryable_OtherKinds(t *testing.T) {
	assert.False(t, Retryable(&BackendError{Op: "get", Kind: ErrNotFound}))
	assert.False(t, Retryable(errors.New("boom")))
	assert.False(t, Retryable(nil))
}

func TestStoredDocument_LogicalID(t *testing.T) {
	whole := StoredDocument{ID: "a"}
	chunk := StoredDocument{ID: "a_chunk_2", ParentID: "a", ChunkIndex: 2}

	assert.Equal(t, "a", whole.LogicalID())
	assert.False(t, whole.IsChunk())
	assert.Equal(t, "a", chunk.LogicalID())
	assert.True(t, chunk.IsChunk())
}
