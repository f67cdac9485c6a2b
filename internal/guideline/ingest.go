package guideline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/epiguide/epiguide/internal/log"
)

// Source is one guideline document to ingest.
type Source struct {
	DocumentName string
	Text         string
}

// maxChunkSize is the passage window in bytes. Roughly a third of a page:
// small enough to keep retrieval focused, large enough to carry a full
// dosing paragraph.
const maxChunkSize = 1200

// embedBatchSize bounds one embedding call during ingestion.
const embedBatchSize = 64

// chunkNamespace makes chunk IDs deterministic: re-ingesting the same
// document produces the same IDs, so upsert replaces instead of duplicating.
var chunkNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // uuid.NameSpaceDNS

// pageMarkerPattern matches explicit page markers in extracted text,
// e.g. "--- page 12 ---".
var pageMarkerPattern = regexp.MustCompile(`(?m)^---\s*page\s+(\d+)\s*---\s*$`)

// headingPattern matches markdown headings used to track the current section.
var headingPattern = regexp.MustCompile(`(?m)^#{1,4}\s+(.+)$`)

// ChunkDocument splits a guideline document into passages.
//
// Pages are split on form feeds or "--- page N ---" markers; within a page,
// paragraphs are greedily packed into windows of at most maxChunkSize bytes.
// Each chunk carries document_name, page_number and the most recent heading
// as section metadata.
func ChunkDocument(documentName, text string) []Chunk {
	var chunks []Chunk
	section := ""

	for _, page := range splitPages(text) {
		pageNum := page.num
		paragraphs := splitParagraphs(page.text)

		var window strings.Builder
		flush := func() {
			content := strings.TrimSpace(window.String())
			window.Reset()
			if content == "" {
				return
			}
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:           chunkID(documentName, idx),
				DocumentName: documentName,
				Content:      content,
				Metadata: map[string]string{
					"document_name": documentName,
					"page_number":   strconv.Itoa(pageNum),
					"section":       section,
				},
			})
		}

		for _, para := range paragraphs {
			if m := headingPattern.FindStringSubmatch(para); m != nil {
				section = strings.TrimSpace(m[1])
			}
			if window.Len() > 0 && window.Len()+len(para)+2 > maxChunkSize {
				flush()
			}
			if window.Len() > 0 {
				window.WriteString("\n\n")
			}
			window.WriteString(para)
			// Oversized single paragraphs become their own chunk.
			if window.Len() >= maxChunkSize {
				flush()
			}
		}
		flush()
	}

	return chunks
}

// chunkID derives a stable UUID for the chunk at position idx.
func chunkID(documentName string, idx int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", documentName, idx))).String()
}

// page is one document page in reading order.
type page struct {
	num  int
	text string
}

// splitPages splits a document into pages in reading order, starting at
// page 1. Both form feeds (PDF text extraction) and explicit
// "--- page N ---" markers are honored; a document without either is a
// single page.
func splitPages(text string) []page {
	var pages []page

	if locs := pageMarkerPattern.FindAllStringSubmatchIndex(text, -1); len(locs) > 0 {
		// Text before the first marker belongs to page 1.
		if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
			pages = append(pages, page{num: 1, text: lead})
		}
		for i, loc := range locs {
			num, _ := strconv.Atoi(text[loc[2]:loc[3]])
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			if body := strings.TrimSpace(text[loc[1]:end]); body != "" {
				pages = append(pages, page{num: num, text: body})
			}
		}
		return pages
	}

	for i, pageText := range strings.Split(text, "\f") {
		if trimmed := strings.TrimSpace(pageText); trimmed != "" {
			pages = append(pages, page{num: i + 1, text: trimmed})
		}
	}
	return pages
}

// splitParagraphs splits on blank lines.
func splitParagraphs(text string) []string {
	var out []string
	for _, para := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if trimmed := strings.TrimSpace(para); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadDir reads every .txt and .md file in dir as one Source.
// The document name is the file name without extension, with underscores
// replaced by spaces.
func LoadDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading corpus file %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		name = strings.ReplaceAll(name, "_", " ")
		sources = append(sources, Source{DocumentName: name, Text: string(data)})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no .txt or .md files in %s", dir)
	}
	return sources, nil
}

// Ingestor loads guideline documents into the store.
type Ingestor struct {
	store  *Store
	logger log.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(store *Store, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{store: store, logger: logger}
}

// Run chunks, embeds and stores each source. Existing passages of a
// document are deleted first so re-ingesting is idempotent.
func (in *Ingestor) Run(ctx context.Context, sources []Source) (int, error) {
	total := 0
	for _, src := range sources {
		start := time.Now()

		deleted, err := in.store.DeleteDocument(ctx, src.DocumentName)
		if err != nil {
			return total, err
		}

		chunks := ChunkDocument(src.DocumentName, src.Text)
		if len(chunks) == 0 {
			in.logger.Warn("document produced no chunks", "document", src.DocumentName)
			continue
		}

		for i := 0; i < len(chunks); i += embedBatchSize {
			end := min(i+embedBatchSize, len(chunks))
			if err := in.store.AddAll(ctx, chunks[i:end]); err != nil {
				return total, fmt.Errorf("ingesting %q: %w", src.DocumentName, err)
			}
		}

		total += len(chunks)
		in.logger.Info("document ingested",
			"document", src.DocumentName,
			"chunks", len(chunks),
			"replaced", deleted,
			"duration", time.Since(start))
	}
	return total, nil
}
