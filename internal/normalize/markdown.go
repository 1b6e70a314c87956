package normalize

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// readmeVariants are processed first, in this order.
var readmeVariants = []string{"readme.md", "readme_en.md", "readme_zh.md"}

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`[^`\n]+`")
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe  = regexp.MustCompile(`\n\s*\n`)
	titleScanSize = 10
)

// CleanMarkdown reduces markdown to searchable text: code is removed, image
// markup is dropped, links keep their text, HTML tags go, and runs of blank
// lines collapse to one.
func CleanMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = fencedCodeRe.ReplaceAllString(s, "")
	s = inlineCodeRe.ReplaceAllString(s, "")
	s = imageRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ExtractTitle returns the first heading among the first ten lines, without
// its # markers, or "".
func ExtractTitle(cleaned string) string {
	lines := strings.SplitN(cleaned, "\n", titleScanSize+1)
	if len(lines) > titleScanSize {
		lines = lines[:titleScanSize]
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

// MarkdownAdapter turns a source's root-level markdown files into documents.
type MarkdownAdapter struct {
	Root string
}

// Name implements SourceAdapter.
func (MarkdownAdapter) Name() string { return "markdown" }

// Extract implements SourceAdapter.
func (a MarkdownAdapter) Extract(ctx context.Context, src Source) ([]document.Document, []Issue) {
	entries, err := os.ReadDir(src.Dir)
	if err != nil {
		return nil, []Issue{{Source: src.Name, Path: src.Dir, Err: errors.ExtractionError(src.Dir, err)}}
	}

	var readmes, others []string
	byLower := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		lower := strings.ToLower(name)
		if e.IsDir() || !strings.HasSuffix(lower, ".md") {
			continue
		}
		if isReadmeVariant(lower) {
			byLower[lower] = append(byLower[lower], name)
			continue
		}
		others = append(others, name)
	}
	for _, v := range readmeVariants {
		readmes = append(readmes, byLower[v]...)
	}
	sort.Strings(others)

	var docs []document.Document
	var issues []Issue
	for _, name := range append(readmes, others...) {
		if ctx.Err() != nil {
			break
		}
		doc, ok, err := a.extractFile(src, filepath.Join(src.Dir, name))
		if err != nil {
			issues = append(issues, Issue{Source: src.Name, Path: filepath.Join(src.Dir, name), Err: err})
			continue
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, issues
}

func isReadmeVariant(lower string) bool {
	for _, v := range readmeVariants {
		if lower == v {
			return true
		}
	}
	return false
}

func (a MarkdownAdapter) extractFile(src Source, path string) (document.Document, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, false, errors.ExtractionError(path, err)
	}

	content := CleanMarkdown(string(raw))
	if content == "" {
		return document.Document{}, false, nil
	}

	typ := document.TypeDocumentation
	if strings.EqualFold(filepath.Base(path), "readme.md") {
		typ = document.TypeReadme
	}

	rel := relSlash(a.Root, path)
	title := ExtractTitle(content)
	return document.Document{
		ID:          document.NewID(src.Name, typ, rel),
		Type:        typ,
		Submodule:   src.Name,
		Path:        rel,
		Title:       title,
		TitleEn:     title,
		Content:     content,
		Language:    document.LanguageEn,
		SourceLinks: []string{},
	}, true, nil
}
