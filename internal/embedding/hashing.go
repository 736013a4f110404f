package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultHashingDimension matches the output size of common small
// sentence-embedding models.
const DefaultHashingDimension = 384

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashingModel is an in-process bag-of-words model using signed feature hashing.
// It needs no external service, which makes it the default for local runs and tests.
type HashingModel struct {
	dim       int
	stopwords map[string]struct{}
}

// NewHashingModel creates a HashingModel. A non-positive dimension selects the default.
func NewHashingModel(dim int) *HashingModel {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingModel{dim: dim, stopwords: defaultStopwords()}
}

// HashingLoader returns a Loader for a HashingModel.
func HashingLoader(dim int) Loader {
	return func(ctx context.Context) (Model, error) {
		return NewHashingModel(dim), nil
	}
}

func (h *HashingModel) Name() string { return "hashing" }

func (h *HashingModel) Dimension() int { return h.dim }

// Embed returns one L2-normalized vector per text. Texts without any
// tokens map to the zero vector.
func (h *HashingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashingModel) vector(text string) []float32 {
	acc := make([]float64, h.dim)
	for _, tok := range h.tokenize(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dim))
		if sum>>63 == 1 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (h *HashingModel) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := h.stopwords[t]; stop {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

// stem folds plural forms onto their singular.
func stem(t string) string {
	switch {
	case len(t) > 4 && strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss"):
		return t[:len(t)-1]
	}
	return t
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "whom",
		"how", "why", "when", "where", "do", "does", "did", "i", "you", "we", "they", "me", "my", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
