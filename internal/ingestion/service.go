package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
)

// headerSeparator splits a corpus file into its metadata header and article body.
const headerSeparator = "---\n\n"

const cleanPrompt = `You are a text processing expert specializing in cleaning scraped web content for a Retrieval-Augmented Generation (RAG) system. Your task is to reformat the provided text to ensure perfect paragraphing and remove any irrelevant artifacts from the scraping process.

Instructions:
- Correct any spacing or paragraphing errors. Ensure each distinct paragraph is separated by a single double newline (\n\n).
- Remove any fully duplicate sentences or entire duplicate paragraphs.
- Delete standalone navigation elements, footer text, or other non-article text (e.g., "Word template:", "Find out more about:", "Click here", "Related articles").
- Merge sentence fragments into coherent paragraphs where it is obvious they belong together.
- Do not summarize, invent, or change the meaning of the original text. The output must be the cleaned, full text of the article. Preserve the original wording.

Here is the text to clean:
---
%s
---
`

// DocumentWriter persists an embedded document.
type DocumentWriter interface {
	InsertDocument(ctx context.Context, content, sourceURL string, embedding []float32) (uuid.UUID, error)
}

// CorpusFile is a parsed corpus file.
type CorpusFile struct {
	Header    string
	Content   string
	SourceURL string
}

// ParseCorpusFile splits data on the first header separator. Files without one are all content.
// The header's source_url (or url/source) line becomes SourceURL.
func ParseCorpusFile(data string) CorpusFile {
	header, content, found := strings.Cut(data, headerSeparator)
	if !found {
		return CorpusFile{Content: data}
	}

	f := CorpusFile{Header: header, Content: content}
	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "source_url", "url", "source":
			if f.SourceURL == "" {
				f.SourceURL = strings.TrimSpace(value)
			}
		}
	}
	return f
}

// Service cleans and loads the legal-guidance corpus.
type Service struct {
	generator interfaces.TextGenerator
	embedder  interfaces.Embedder
	writer    DocumentWriter
	logger    *slog.Logger
}

// NewService creates the ingestion service. writer may be nil when only cleaning.
func NewService(gen interfaces.TextGenerator, emb interfaces.Embedder, writer DocumentWriter, logger *slog.Logger) *Service {
	return &Service{
		generator: gen,
		embedder:  emb,
		writer:    writer,
		logger:    logger.With("component", "ingestion_service"),
	}
}

// CleanText asks the model to tidy scraped text. On model failure the raw text is returned unchanged.
func (s *Service) CleanText(ctx context.Context, raw string) string {
	out, err := s.generator.Generate(ctx, fmt.Sprintf(cleanPrompt, raw))
	if err != nil {
		s.logger.WarnContext(ctx, "Cleaning failed, keeping raw text", slog.Any("error", err))
		return raw
	}
	return strings.TrimSpace(out)
}

// CleanStats summarises a Clean run.
type CleanStats struct {
	Processed int
	Skipped   int
}

// Clean writes a cleaned copy of every source file into outDir, skipping files already there.
func (s *Service) Clean(ctx context.Context, src Source, outDir string) (CleanStats, error) {
	var stats CleanStats
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	names, err := src.List(ctx)
	if err != nil {
		return stats, err
	}

	for _, name := range names {
		outPath := filepath.Join(outDir, filepath.Base(name))
		if _, err := os.Stat(outPath); err == nil {
			s.logger.InfoContext(ctx, "Skipping file, already processed", "file", name)
			stats.Skipped++
			continue
		}

		data, err := readAll(ctx, src, name)
		if err != nil {
			return stats, err
		}

		s.logger.InfoContext(ctx, "Processing file", "file", name)
		file := ParseCorpusFile(data)
		cleaned := s.CleanText(ctx, file.Content)

		if err := os.WriteFile(outPath, []byte(file.Header+headerSeparator+cleaned), 0o644); err != nil {
			return stats, fmt.Errorf("failed to write cleaned file %s: %w", outPath, err)
		}
		s.logger.InfoContext(ctx, "Cleaned file saved", "path", outPath)
		stats.Processed++
	}
	return stats, nil
}

// Load embeds every source file as a retrieval document and stores it.
func (s *Service) Load(ctx context.Context, src Source) (int, error) {
	if s.writer == nil {
		return 0, fmt.Errorf("no document writer configured")
	}

	names, err := src.List(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, name := range names {
		data, err := readAll(ctx, src, name)
		if err != nil {
			return loaded, err
		}
		file := ParseCorpusFile(data)
		content := strings.TrimSpace(file.Content)
		if content == "" {
			s.logger.WarnContext(ctx, "Skipping empty file", "file", name)
			continue
		}

		vec, err := s.embedder.Embed(ctx, content, interfaces.TaskRetrievalDocument)
		if err != nil {
			return loaded, fmt.Errorf("failed to embed %s: %w", name, err)
		}

		id, err := s.writer.InsertDocument(ctx, content, file.SourceURL, vec)
		if err != nil {
			return loaded, fmt.Errorf("failed to store %s: %w", name, err)
		}
		s.logger.InfoContext(ctx, "Document loaded", "file", name, "id", id, "source_url", file.SourceURL)
		loaded++
	}
	return loaded, nil
}

func readAll(ctx context.Context, src Source, name string) (string, error) {
	r, err := src.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(b), nil
}
