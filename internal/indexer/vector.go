package indexer

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/sgx-labs/breakdown/internal/content"
	"github.com/sgx-labs/breakdown/internal/store"
)

// Field weights for term vectors.
const (
	weightBody        = 1
	weightDescription = 2
	weightTitle       = 3
	weightTag         = 4
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "can": true, "for": true, "from": true, "has": true, "have": true, "how": true,
	"if": true, "in": true, "into": true, "is": true, "it": true, "its": true, "may": true,
	"not": true, "of": true, "on": true, "or": true, "that": true, "the": true, "their": true,
	"this": true, "to": true, "was": true, "what": true, "when": true, "which": true,
	"who": true, "will": true, "with": true, "you": true, "your": true,
}

// TermVector builds a store.VectorDim feature-hashed vector for an article.
// Each term's weighted frequency is log-scaled, hashed into a signed
// bucket, and the result is L2-normalized.
func TermVector(it content.Item) []float32 {
	tf := make(map[string]float64)
	addTerms(tf, content.StripMarkdown(it.Body), weightBody)
	addTerms(tf, it.Description, weightDescription)
	addTerms(tf, it.Title, weightTitle)
	for _, tag := range it.Tags {
		addTerms(tf, tag, weightTag)
	}

	vec := make([]float64, store.VectorDim)
	for term, f := range tf {
		bucket, sign := hashTerm(term)
		vec[bucket] += sign * (1 + math.Log(f))
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, store.VectorDim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func addTerms(tf map[string]float64, text string, weight float64) {
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		tf[tok] += weight
	}
}

func hashTerm(term string) (int, float64) {
	h := fnv.New32a()
	h.Write([]byte(term))
	sum := h.Sum32()
	sign := 1.0
	if sum&0x80000000 != 0 {
		sign = -1.0
	}
	return int(sum % store.VectorDim), sign
}
