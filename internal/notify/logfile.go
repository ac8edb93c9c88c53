package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olivier-w/vudial/internal/watch"
)

type logEntry struct {
	Timestamp   string  `json:"timestamp"`
	Event       string  `json:"event"`
	Source      string  `json:"source,omitempty"`
	DBFS        float64 `json:"dbfs,omitempty"`
	ThresholdDB float64 `json:"threshold_db"`
	OutageSec   float64 `json:"outage_sec,omitempty"`
}

// LogFile appends alarm events to a JSON-lines file.
type LogFile struct {
	Path   string
	Source string
}

func (l *LogFile) Name() string { return "log" }

func (l *LogFile) Notify(ev watch.Event) error {
	entry := logEntry{
		Timestamp:   ev.At.UTC().Format(time.RFC3339),
		Source:      l.Source,
		ThresholdDB: ev.Threshold,
	}
	switch ev.Kind {
	case watch.EventRecovered:
		entry.Event = "silence_end"
		entry.OutageSec = ev.Outage.Seconds()
	default:
		entry.Event = "silence_start"
		entry.DBFS = ev.DBFS
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}
