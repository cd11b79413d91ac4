package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 * 1024 * 1024

// LoadDocuments reads documents from each path, by extension:
//
//	.jsonl .ndjson  one JSON document per line
//	.json           a JSON array of documents
//	.yaml .yml      a YAML list of documents
//	anything else   the whole file as one document, id = file name
//
// Documents without an id get a content-derived one.
func LoadDocuments(paths ...string) ([]retriever.Document, error) {
	var docs []retriever.Document
	for _, path := range paths {
		var (
			loaded []retriever.Document
			err    error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson":
			loaded, err = loadJSONL(path)
		case ".json":
			loaded, err = loadJSON(path)
		case ".yaml", ".yml":
			loaded, err = loadYAML(path)
		default:
			loaded, err = loadText(path)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}

	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = retriever.ContentID(docs[i].Content)
		}
	}
	return docs, nil
}

func loadJSONL(path string) ([]retriever.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var docs []retriever.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var d retriever.Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return docs, nil
}

func loadJSON(path string) ([]retriever.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var docs []retriever.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

func loadYAML(path string) ([]retriever.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var docs []retriever.Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

func loadText(path string) ([]retriever.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return []retriever.Document{{
		ID:       filepath.Base(path),
		Content:  string(data),
		Metadata: map[string]any{"path": path},
	}}, nil
}
