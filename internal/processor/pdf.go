// Package processor turns manifesto PDFs into tagged, stable-id excerpts
// ready for embedding and upsert.
package processor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"partimatch/internal/models"

	"github.com/ledongthuc/pdf"
)

const (
	// Maximum size for a single segment
	MaxSegmentSize = 2000
	// Segments shorter than this are noise (headers, page furniture) and are dropped
	MinSegmentSize = 200
	// Length of the short preview stored alongside each excerpt
	PreviewSize = 220
)

var (
	yearRe = regexp.MustCompile(`(20\d{2})`)

	topicPatterns = []struct {
		re    *regexp.Regexp
		topic string
	}{
		{regexp.MustCompile(`(?i)(klima|utslipp|fornybar|co2|energi)`), "klima"},
		{regexp.MustCompile(`(?i)(skatt|avgift|formuesskatt|inntektsskatt)`), "skatt"},
		{regexp.MustCompile(`(?i)(skole|utdanning|lærer|elever)`), "skole"},
		{regexp.MustCompile(`(?i)(helse|sykehus|fastlege|psykiatri)`), "helse"},
		{regexp.MustCompile(`(?i)(innvandring|asyl|integrering)`), "innvandring"},
	}
)

// Page is one PDF page's extracted text.
type Page struct {
	Number int
	Text   string
}

// PDFProcessor extracts and segments manifesto PDFs.
type PDFProcessor struct {
	MaxSegment int
	MinSegment int
}

// NewPDFProcessor creates a processor with the default segment bounds.
func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{
		MaxSegment: MaxSegmentSize,
		MinSegment: MinSegmentSize,
	}
}

// ExtractPages extracts text from a PDF file page by page so excerpts keep
// their page numbers.
func (p *PDFProcessor) ExtractPages(filePath string) ([]Page, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []Page
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
		}
		pages = append(pages, Page{Number: pageNum, Text: text})
	}

	return pages, nil
}

// ProcessPDF processes a manifesto PDF into excerpts. Party and year come
// from the filename, the topic from each segment's content. Embeddings are
// filled in later by the indexer.
func (p *PDFProcessor) ProcessPDF(filePath string) ([]models.Excerpt, error) {
	pages, err := p.ExtractPages(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pages: %w", err)
	}

	filename := filepath.Base(filePath)
	party := GuessParty(filename)
	year := GuessYear(filename)

	var excerpts []models.Excerpt
	for _, page := range pages {
		for idx, segment := range p.Segment(page.Text) {
			excerpts = append(excerpts, models.Excerpt{
				ID:        models.ExcerptID(filename, page.Number, idx),
				Content:   segment,
				Party:     party,
				Topic:     GuessTopic(segment),
				Year:      year,
				SourceURL: filename,
				Page:      page.Number,
				Preview:   preview(segment),
			})
		}
	}

	return excerpts, nil
}

// Segment splits page text into paragraph-aligned segments of at most
// MaxSegment characters, dropping segments below MinSegment.
func (p *PDFProcessor) Segment(text string) []string {
	paragraphs := regexp.MustCompile(`\n{2,}`).Split(strings.ReplaceAll(text, "\r", "\n"), -1)

	var segments []string
	var current string
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if len(candidate) > p.MaxSegment && current != "" {
			segments = append(segments, current)
			current = para
		} else {
			current = candidate
		}
	}
	if current != "" {
		segments = append(segments, current)
	}

	kept := segments[:0]
	for _, s := range segments {
		if len(s) >= p.MinSegment {
			kept = append(kept, s)
		}
	}
	return kept
}

// GuessParty maps a manifesto filename to a party code by keyword. Unmatched
// filenames fall back to "Ap"; mislabeled documents must be renamed before
// ingestion.
func GuessParty(filename string) string {
	f := strings.ToLower(filename)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(f, k) {
				return true
			}
		}
		return false
	}

	switch {
	case has("hoyre", "høyre", "hoyres", "høyres"):
		return "H"
	case has("arbeiderpartiet", " ap ", " ap-", " ap_", "ap.", "ap "):
		return "Ap"
	case has("sosialistisk venstreparti", "sv-", "sv_", " sv ", " sv.", "sv "):
		return "SV"
	case has("mdg", "miljøpartiet", "miljopartiet", "de grønne", "de gronne"):
		return "MDG"
	case has("fremskrittspartiet", "frp"):
		return "FrP"
	case has("senterparti", "sp-", "sp_", " sp ", " sp."):
		return "Sp"
	case has("rødt", "rodt", "rodts"):
		return "R"
	case has("krf", "kristelig folkeparti", "kristelig-folkeparti", "kristeligfolkeparti"):
		return "KrF"
	case has("venstre"):
		return "V"
	default:
		return "Ap"
	}
}

// GuessTopic classifies a segment by keyword. Segments matching nothing land
// in the broad "miljø" bucket.
func GuessTopic(text string) string {
	for _, p := range topicPatterns {
		if p.re.MatchString(text) {
			return p.topic
		}
	}
	return "miljø"
}

// GuessYear pulls a four-digit year out of the filename, empty if none.
func GuessYear(filename string) string {
	return yearRe.FindString(filename)
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewSize {
		return content
	}
	return string(runes[:PreviewSize])
}
