package models

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// Parties is the closed set of party codes the corpus is partitioned by.
var Parties = []string{"Ap", "H", "FrP", "SV", "MDG", "Sp", "R", "V", "KrF"}

// Topics is the closed set of topic categories.
var Topics = []string{"klima", "skatt", "skole", "helse", "miljø", "innvandring"}

// DefaultTopicWeights is the weighting scheme used when the caller supplies none.
var DefaultTopicWeights = map[string]float64{
	"klima":       0.30,
	"skatt":       0.25,
	"skole":       0.20,
	"helse":       0.15,
	"miljø":       0.07,
	"innvandring": 0.03,
}

// IsKnownParty reports whether code matches a party label, case-insensitively.
func IsKnownParty(code string) bool {
	for _, p := range Parties {
		if strings.EqualFold(p, code) {
			return true
		}
	}
	return false
}

// IsKnownTopic reports whether name matches a topic label, case-insensitively.
func IsKnownTopic(name string) bool {
	for _, t := range Topics {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Excerpt is an immutable chunk of manifesto text with its metadata.
// Year, SourceURL and Page are optional; the zero value means absent.
type Excerpt struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Party     string    `json:"party"`
	Topic     string    `json:"topic"`
	Year      string    `json:"year,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Page      int       `json:"page,omitempty"`
	Preview   string    `json:"excerpt,omitempty"`
	Embedding []float32 `json:"-"`
}

// ExcerptID derives the stable identifier for a chunk. Re-ingesting the same
// source file yields the same ids, which makes the upsert idempotent.
func ExcerptID(sourceFile string, page, chunkIndex int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s#p%d#%d", sourceFile, page, chunkIndex)))
	return fmt.Sprintf("%x", sum)
}

// Candidate is an excerpt joined with its query-scoped scores. It exists only
// within a single retrieval call.
type Candidate struct {
	Excerpt
	VectorScore  float64 `json:"vector_score"`
	LexicalScore float64 `json:"lexical_score"`
	Blended      float64 `json:"blended"`
}

// Citation is the UI-facing reference record for a retrieved excerpt.
type Citation struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url,omitempty"`
	Party     string `json:"party"`
	Year      string `json:"year,omitempty"`
	Page      int    `json:"page,omitempty"`
	Excerpt   string `json:"excerpt,omitempty"`
}

// RetrievedContext is the retrieval output handed to prompt builders and the UI.
type RetrievedContext struct {
	Context   string     `json:"context"`
	Citations []Citation `json:"citations"`
}

// Claim is one structured statement extracted from user text by the external
// claim extractor. Strength weighs how firmly the user asserted it.
type Claim struct {
	Topic     string  `json:"topic"`
	Dimension string  `json:"dimension"`
	Value     string  `json:"value"`
	Strength  float64 `json:"strength"`
	Polarity  string  `json:"polarity,omitempty"`
}

// TopicProfile is a party's position on one topic as built by the external
// profile builder: dimension name to value, plus supporting citations.
type TopicProfile struct {
	Values    map[string]string `json:"values"`
	Citations []Citation        `json:"citations,omitempty"`
}

// PartyMatch is one ranked entry in the match result.
type PartyMatch struct {
	Party     string     `json:"party"`
	Score     float64    `json:"score"`
	Why       []string   `json:"why"`
	Citations []Citation `json:"citations"`
}

// MatchResult holds normalized per-party scores plus the explained top parties.
type MatchResult struct {
	Scores   map[string]float64            `json:"scores"`
	Top      []PartyMatch                  `json:"top"`
	PerTopic map[string]map[string]float64 `json:"perTopic,omitempty"`
}
