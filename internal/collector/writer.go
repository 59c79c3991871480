package collector

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// JSONLWriter writes collected records as {outputDir}/{env}/{type}.jsonl,
// one envelope line per record.
type JSONLWriter struct {
	OutputDir string
}

type envelope struct {
	FetchTimestamp string          `json:"fetch_timestamp"`
	Data           json.RawMessage `json:"data"`
}

// WriteFile replaces the data type's JSONL file with the given records,
// each wrapped in the collector envelope. Written atomically via a temp
// file so readers never see a half-written dataset.
func (w *JSONLWriter) WriteFile(envID, dataType string, items []json.RawMessage) error {
	dir := filepath.Join(w.OutputDir, envID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	target := filepath.Join(dir, dataType+".jsonl")
	tmp, err := os.CreateTemp(dir, dataType+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	now := time.Now().UTC().Format(time.RFC3339)
	buf := bufio.NewWriter(tmp)
	for _, item := range items {
		line, err := json.Marshal(envelope{FetchTimestamp: now, Data: item})
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := buf.Write(append(line, '\n')); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
