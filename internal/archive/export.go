package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/crater/internal/report"
)

// WeeklySource assembles weekly reports.
type WeeklySource interface {
	Weekly(ctx context.Context, date string) (*report.WeeklyReport, error)
}

// header is the first JSONL record written by ExportWeekly.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Data any    `json:"data"`
}

// ExportWeekly writes the weekly report for date as JSONL: a header, the
// current toolchains, then one record per comparison.
func ExportWeekly(ctx context.Context, src WeeklySource, date string, w io.Writer) error {
	rep, err := src.Weekly(ctx, date)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: time.Now().UTC(),
		Date:      date,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Encode(record{Type: "current", Data: rep.Current}); err != nil {
		return fmt.Errorf("encode current: %w", err)
	}
	for _, c := range []struct {
		name string
		rep  *report.ComparisonReport
	}{
		{"beta", &rep.Beta},
		{"nightly", &rep.Nightly},
	} {
		if err := enc.Encode(record{Type: "comparison", Name: c.name, Data: c.rep}); err != nil {
			return fmt.Errorf("encode %s comparison: %w", c.name, err)
		}
	}
	return nil
}
