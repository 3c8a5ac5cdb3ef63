// Package storage implements the two write paths every worker uses after
// extraction: the bronze lake (valid records, partitioned by source and
// date) and the trash bin (rejected records plus debug artifacts). Records
// are appended as compact JSON lines; debug artifacts are written as whole
// files, replacing any earlier file of the same name.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/99souls/harvester/internal/extract"
)

// BronzeWriter appends valid extracted records to a partitioned,
// append-only lake under root, one JSONL file per (source_id, day, task).
type BronzeWriter struct {
	root string
	mu   sync.Mutex
}

// NewBronzeWriter returns a writer rooted at root; root is created lazily
// on first write.
func NewBronzeWriter(root string) *BronzeWriter {
	return &BronzeWriter{root: root}
}

// BronzeRecord is one record plus the lineage columns the lake carries
// alongside the extracted fields.
type BronzeRecord struct {
	SourceID   string         `json:"source_id"`
	SchemaID   string         `json:"schema_id"`
	TaskID     string         `json:"task_id"`
	RunID      string         `json:"run_id"`
	PageNumber int            `json:"page_number"`
	IngestedAt time.Time      `json:"ingested_at"`
	Fields     extract.Record `json:"fields"`
}

// Write appends one BronzeRecord per item in records to
// <root>/<source_id>/<yyyy>/<mm>/<dd>/<task_id>/records.jsonl. A write
// failure is logged by the caller and never blocks task completion — the
// bronze lake is append-only best-effort, not a transactional sink.
func (w *BronzeWriter) Write(sourceID, schemaID, taskID, runID string, pageNumber int, records []extract.Record, now time.Time) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.root, sourceID, now.Format("2006"), now.Format("01"), now.Format("02"), taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bronze partition: %w", err)
	}
	path := filepath.Join(dir, "records.jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open bronze partition: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		row := BronzeRecord{
			SourceID: sourceID, SchemaID: schemaID, TaskID: taskID, RunID: runID,
			PageNumber: pageNumber, IngestedAt: now, Fields: rec,
		}
		if err := enc.Encode(row); err != nil {
			return path, fmt.Errorf("encode bronze record: %w", err)
		}
	}
	return path, nil
}

// TrashWriter persists rejected records and raw debug artifacts (raw HTML,
// screenshots) that a rejected or failed attempt leaves behind.
type TrashWriter struct {
	root string
	mu   sync.Mutex
}

// NewTrashWriter returns a writer rooted at root.
func NewTrashWriter(root string) *TrashWriter {
	return &TrashWriter{root: root}
}

// RejectedRecord is one record that failed the extraction core's record
// validation, plus why.
type RejectedRecord struct {
	TaskID string         `json:"task_id"`
	Reason string         `json:"reason"`
	Fields extract.Record `json:"fields"`
}

// WriteRejected appends rejected records to
// <root>/debug/<yyyy>/<mm>/<dd>/<task_id>/rejected.jsonl.
func (w *TrashWriter) WriteRejected(taskID string, records []RejectedRecord, now time.Time) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.root, "debug", now.Format("2006"), now.Format("01"), now.Format("02"), taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trash partition: %w", err)
	}
	path := filepath.Join(dir, "rejected.jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open trash partition: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return path, fmt.Errorf("encode rejected record: %w", err)
		}
	}
	return path, nil
}

// WriteArtifact persists a raw debug artifact (HTML source, screenshot
// PNG) under the same partition as WriteRejected, named by name.
func (w *TrashWriter) WriteArtifact(taskID, name string, data []byte, now time.Time) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.root, "debug", now.Format("2006"), now.Format("01"), now.Format("02"), taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trash partition: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}

// WriteHTMLArtifact writes raw HTML alongside a best-effort Markdown
// rendering of it, for human review tooling that would rather read a page's
// content than its markup. A conversion failure never blocks the raw write;
// it is logged by the caller and the markdown path is returned empty.
func (w *TrashWriter) WriteHTMLArtifact(taskID string, html []byte, now time.Time) (htmlPath, markdownPath string, err error) {
	htmlPath, err = w.WriteArtifact(taskID, "raw.html", html, now)
	if err != nil {
		return "", "", err
	}

	conv := converter.NewConverter(converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()))
	markdown, convErr := conv.ConvertString(string(html))
	if convErr != nil {
		return htmlPath, "", convErr
	}

	markdownPath, err = w.WriteArtifact(taskID, "raw.md", []byte(markdown), now)
	if err != nil {
		return htmlPath, "", err
	}
	return htmlPath, markdownPath, nil
}
