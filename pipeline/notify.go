package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type (
	// Summary is the JSON document posted to the notification webhook.
	Summary struct {
		Language string         `json:"language"`
		Branch   string         `json:"branch,omitempty"`
		Tag      string         `json:"tag,omitempty"`
		Passed   bool           `json:"passed"`
		Deployed bool           `json:"deployed"`
		Entries  []EntrySummary `json:"entries"`
	}
	EntrySummary struct {
		Version string `json:"version"`
		Passed  bool   `json:"passed"`
		Steps   int    `json:"steps"`
	}
)

// Summarize condenses a report for notification and display.
func (r *Report) Summarize() Summary {
	summary := Summary{
		Language: r.Language,
		Branch:   r.Context.Branch,
		Tag:      r.Context.Tag,
		Passed:   r.Passed(),
		Deployed: r.Deployed(),
	}
	for _, entry := range r.Entries {
		summary.Entries = append(summary.Entries, EntrySummary{
			Version: entry.Entry.Version,
			Passed:  !entry.Failed,
			Steps:   len(entry.Steps),
		})
	}
	return summary
}

// Notifier posts run summaries to a webhook. Notification failures are the
// caller's to log; they never fail a pipeline.
type Notifier struct {
	URL    string
	Client *http.Client
}

// NewNotifier builds a Notifier with a bounded-timeout client.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the report summary as JSON. A non-2xx response is an error.
func (n *Notifier) Notify(ctx context.Context, report *Report) error {
	body, err := json.Marshal(report.Summarize())
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification webhook returned %s", resp.Status)
	}
	return nil
}
