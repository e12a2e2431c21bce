package export

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/harunnryd/metsuke/internal/interaction"
)

const journalFileName = "interactions.jsonl"

// Journal is an append-only JSONL sink for terminal interaction records. It
// implements interaction.Destination, so attaching it to the tracker flushes
// any buffered records through Append in their original order.
type Journal struct {
	mu   sync.Mutex
	path string
}

func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Journal{path: filepath.Join(dir, journalFileName)}, nil
}

func (j *Journal) Path() string {
	return j.path
}

// Append writes one record as a JSON line. Failures are logged, never
// propagated: journaling must not become a failure mode for tracking.
func (j *Journal) Append(rec *interaction.Interaction) {
	line, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Failed to marshal interaction for journal", "interaction_id", rec.ID, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open interaction journal", "path", j.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Error("Failed to write interaction journal entry", "path", j.path, "error", err)
	}
}

// ReadJournal loads all interaction records from a JSONL journal file.
// Unparseable lines are skipped with a warning.
func ReadJournal(path string) ([]*interaction.Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []*interaction.Interaction
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec interaction.Interaction
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("Skipping malformed journal line", "error", err)
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
