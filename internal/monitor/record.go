// Package monitor carries the progress-monitor event stream: the record
// format written after each display-worthy step, the append-only file sink
// a second process can tail, the tailer itself, and an optional Redis
// mirror. The stream is advisory; a sink failure never fails the step that
// produced the event.
package monitor

import (
	"fmt"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Record is one event-log line:
// "<data-class> <comma-separated-files> <use-display-definition-flag> key=value...".
// A file list of "-" stands for no files, keeping the field count fixed.
type Record struct {
	Class  string
	Files  []string
	UseDef bool
	Extras map[string]string
}

// FromEvent converts a display event into its log record.
func FromEvent(ev domain.DisplayEvent) Record {
	return Record{Class: ev.Class, Files: ev.Files, UseDef: ev.UseDef, Extras: ev.Extras}
}

// Event converts a log record back into a display event.
func (r Record) Event() domain.DisplayEvent {
	return domain.DisplayEvent{Class: r.Class, Files: r.Files, UseDef: r.UseDef, Extras: r.Extras}
}

func (r Record) String() string {
	files := "-"
	if len(r.Files) > 0 {
		files = strings.Join(r.Files, ",")
	}
	flag := "0"
	if r.UseDef {
		flag = "1"
	}
	var b strings.Builder
	b.WriteString(r.Class)
	b.WriteByte(' ')
	b.WriteString(files)
	b.WriteByte(' ')
	b.WriteString(flag)
	if len(r.Extras) > 0 {
		b.WriteByte(' ')
		b.WriteString(domain.Args(r.Extras).String())
	}
	return b.String()
}

// ParseLine reads one event-log line. Extras values may be double-quoted to
// carry spaces, matching what String writes.
func ParseLine(line string) (Record, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Record{}, err
	}
	if len(fields) < 3 {
		return Record{}, fmt.Errorf("short record: %q", line)
	}

	rec := Record{Class: fields[0]}
	if rec.Class == "" {
		return Record{}, fmt.Errorf("record has no data class: %q", line)
	}
	if fields[1] != "-" {
		for _, f := range strings.Split(fields[1], ",") {
			if f != "" {
				rec.Files = append(rec.Files, f)
			}
		}
	}
	switch fields[2] {
	case "0":
	case "1":
		rec.UseDef = true
	default:
		return Record{}, fmt.Errorf("bad display-definition flag %q: %q", fields[2], line)
	}

	for _, kv := range fields[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return Record{}, fmt.Errorf("bad annotation %q: %q", kv, line)
		}
		if rec.Extras == nil {
			rec.Extras = make(map[string]string)
		}
		rec.Extras[k] = v
	}
	return rec, nil
}

// splitFields splits on spaces, honoring double quotes inside tokens.
func splitFields(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote: %q", s)
	}
	flush()
	return fields, nil
}
