package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/olivier-w/vudial/internal/watch"
)

// Webhook POSTs alarm events as JSON.
type Webhook struct {
	URL    string
	Source string
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Notify(ev watch.Event) error {
	payload := map[string]any{
		"source":    w.Source,
		"timestamp": ev.At.UTC().Format(time.RFC3339),
	}
	switch ev.Kind {
	case watch.EventRecovered:
		payload["event"] = "silence_recovered"
		payload["outage_seconds"] = ev.Outage.Seconds()
	default:
		payload["event"] = "silence_detected"
		payload["dbfs"] = ev.DBFS
		payload["threshold"] = ev.Threshold
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
