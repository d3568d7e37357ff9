package retrieval

import (
	"fmt"
	"strings"

	"partimatch/internal/models"
)

// Assemble formats the diversified excerpt list into the context string fed
// to prompt construction plus the parallel citation list for the UI. Pure
// formatting; empty input yields an empty context and empty citations.
func Assemble(excerpts []models.Candidate) *models.RetrievedContext {
	lines := make([]string, 0, len(excerpts))
	citations := make([]models.Citation, 0, len(excerpts))

	for _, excerpt := range excerpts {
		lines = append(lines, "- "+excerpt.Content+" "+citationTag(excerpt.Party, excerpt.Year))
		citations = append(citations, models.Citation{
			ID:        excerpt.ID,
			SourceURL: excerpt.SourceURL,
			Party:     excerpt.Party,
			Year:      excerpt.Year,
			Page:      excerpt.Page,
			Excerpt:   excerpt.Preview,
		})
	}

	return &models.RetrievedContext{
		Context:   strings.Join(lines, "\n"),
		Citations: citations,
	}
}

// citationTag renders the inline source tag; the year is omitted when absent.
func citationTag(party, year string) string {
	if year == "" {
		return fmt.Sprintf("[SOURCE: %s]", party)
	}
	return fmt.Sprintf("[SOURCE: %s, %s]", party, year)
}
