package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// casePrimaryFiles are tried in order; the first one present is the case.
var casePrimaryFiles = []string{"case.yml", "case.yaml", "case.json"}

var attributionFiles = []string{"ATTRIBUTION.yml", "ATTRIBUTION.yaml"}

// contentFields feed the full-text content blob, in this order.
var contentFields = []string{
	"title", "title_en",
	"prompt", "prompt_en",
	"alt_text", "alt_text_en",
	"prompt_note", "prompt_note_en",
	"reference_note", "reference_note_en",
}

// CaseAdapter extracts documents from a source's cases/<n>/ directories.
type CaseAdapter struct {
	Root string
}

// Name implements SourceAdapter.
func (CaseAdapter) Name() string { return "case" }

// Extract implements SourceAdapter. A source without a cases directory
// yields nothing.
func (a CaseAdapter) Extract(ctx context.Context, src Source) ([]document.Document, []Issue) {
	casesDir := filepath.Join(src.Dir, "cases")
	entries, err := os.ReadDir(casesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []Issue{{Source: src.Name, Path: casesDir, Err: errors.ExtractionError(casesDir, err)}}
	}

	type numbered struct {
		n    int
		name string
	}
	var dirs []numbered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n < 0 {
			continue
		}
		dirs = append(dirs, numbered{n: n, name: e.Name()})
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].n != dirs[j].n {
			return dirs[i].n < dirs[j].n
		}
		return dirs[i].name < dirs[j].name
	})

	var docs []document.Document
	var issues []Issue
	for _, d := range dirs {
		if ctx.Err() != nil {
			break
		}
		caseDir := filepath.Join(casesDir, d.name)
		doc, ok, err := a.extractCase(src, caseDir)
		if err != nil {
			issues = append(issues, Issue{Source: src.Name, Path: caseDir, Err: err})
			continue
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, issues
}

func (a CaseAdapter) extractCase(src Source, caseDir string) (document.Document, bool, error) {
	primaryPath := firstExisting(caseDir, casePrimaryFiles)
	if primaryPath == "" {
		return document.Document{}, false, nil
	}

	fields, err := readFields(primaryPath)
	if err != nil {
		return document.Document{}, false, errors.ExtractionError(primaryPath, err)
	}

	var attribution map[string]any
	if attrPath := firstExisting(caseDir, attributionFiles); attrPath != "" {
		attribution, err = readFields(attrPath)
		if err != nil {
			slog.Warn("attribution_unreadable",
				slog.String("path", attrPath),
				slog.String("error", err.Error()))
			attribution = nil
		}
	}

	get := func(key string) string { return scalar(fields[key]) }
	fill := func(primary string, attrKeys ...string) string {
		if primary != "" {
			return primary
		}
		for _, k := range attrKeys {
			if v := scalar(attribution[k]); v != "" {
				return v
			}
		}
		return ""
	}

	title := fill(get("title"), "title")
	titleEn := get("title_en")

	parts := make([]string, 0, len(contentFields))
	for _, k := range contentFields {
		switch k {
		case "title":
			parts = append(parts, title)
		default:
			parts = append(parts, get(k))
		}
	}

	image := ""
	if name := get("image"); name != "" {
		imagePath := filepath.Join(caseDir, name)
		if info, err := os.Stat(imagePath); err == nil && !info.IsDir() {
			image = relSlash(a.Root, imagePath)
		}
	}

	rel := relSlash(a.Root, caseDir)
	return document.Document{
		ID:             document.NewID(src.Name, document.TypeCase, rel),
		Type:           document.TypeCase,
		Submodule:      src.Name,
		Path:           rel,
		Title:          title,
		TitleEn:        titleEn,
		Prompt:         get("prompt"),
		PromptEn:       get("prompt_en"),
		Author:         fill(get("author"), "author", "prompt_author"),
		AuthorLink:     fill(get("author_link"), "author_link", "prompt_author_link"),
		Image:          image,
		CapabilityCode: get("capability_code"),
		CapabilityType: get("capability_type"),
		Content:        document.JoinContent(parts...),
		Language:       document.DetectLanguage(title, titleEn),
		SourceLinks:    stringList(fields["source_links"]),
	}, true, nil
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// readFields decodes a YAML or JSON mapping. An empty file is an empty
// mapping; any other top-level shape is an error.
func readFields(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return map[string]any{}, nil
	}

	var v any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &v)
	} else {
		err = yaml.Unmarshal(raw, &v)
	}
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}

// scalar renders a decoded value as a trimmed string. Nested structures are
// rendered as JSON so nothing silently disappears.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(t))
		}
		return string(b)
	}
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := scalar(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
