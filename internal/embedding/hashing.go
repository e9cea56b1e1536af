package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a deterministic bag-of-words embedder. Each lowercased word is
// hashed into one of Dim buckets and the vector is L2-normalized. It needs
// no model service and is meant for offline runs and tests.
type Hashing struct {
	Dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

func (h *Hashing) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *Hashing) vector(text string) []float32 {
	vec := make([]float32, h.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		for _, token := range tokens(word) {
			hasher := fnv.New32a()
			_, _ = hasher.Write([]byte(token))
			vec[hasher.Sum32()%uint32(h.Dim)]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// tokens yields the word and its naive singular so "users" and "user" share
// a bucket.
func tokens(word string) []string {
	if len(word) > 3 && strings.HasSuffix(word, "s") {
		return []string{word, strings.TrimSuffix(word, "s")}
	}
	return []string{word}
}
