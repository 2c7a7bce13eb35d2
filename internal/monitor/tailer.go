package monitor

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
)

// Tailer follows the event log from a second process. Each Poll returns the
// records appended since the previous one. The file's identity is checked
// on every poll so a recreated log (a new recipe run) is detected and the
// read position reset; a truncated log restarts from the top. Malformed
// lines are skipped with a warning, never returned as errors.
type Tailer struct {
	path string
	log  *slog.Logger

	f      *os.File
	ident  os.FileInfo // identity of the file currently open
	offset int64
	carry  []byte // trailing partial line from the previous poll
}

// NewTailer follows the event log at path. The file need not exist yet.
func NewTailer(path string, log *slog.Logger) *Tailer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Tailer{path: path, log: log}
}

func (t *Tailer) reset() {
	if t.f != nil {
		_ = t.f.Close()
	}
	t.f = nil
	t.ident = nil
	t.offset = 0
	t.carry = nil
}

// Poll reads the complete lines appended since the last call.
func (t *Tailer) Poll() ([]Record, error) {
	cur, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.reset()
			return nil, nil
		}
		return nil, err
	}

	if t.f != nil && !os.SameFile(t.ident, cur) {
		t.log.Debug("event log recreated, restarting", "path", t.path)
		t.reset()
	}
	if t.f == nil {
		f, err := os.Open(t.path)
		if err != nil {
			return nil, err
		}
		ident, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		t.f, t.ident = f, ident
	}

	if cur.Size() < t.offset {
		t.log.Debug("event log truncated, restarting", "path", t.path)
		t.offset = 0
		t.carry = nil
	}

	if _, err := t.f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(t.f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(data))

	chunk := string(append(t.carry, data...))
	lines := strings.Split(chunk, "\n")
	t.carry = []byte(lines[len(lines)-1])

	var recs []Record
	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			t.log.Warn("skipping malformed event record", "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close releases the underlying file. The tailer may be reused; the next
// Poll reopens from the start.
func (t *Tailer) Close() error {
	t.reset()
	return nil
}
