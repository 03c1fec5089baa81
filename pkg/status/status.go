// Package status reads the script history ledger for display.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/mongorun"
)

// Status display constants
const (
	defaultHistoryLimit = 10 // Default number of history entries to show
)

// HistoryItem is one ledger row. CreatedAt is an RFC3339 timestamp in UTC.
type HistoryItem struct {
	ID          string `json:"id"`
	Collection  string `json:"collection"`
	Ticket      string `json:"ticket"`
	Description string `json:"description"`
	Success     bool   `json:"success"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	CreatedAt   string `json:"created_at"`
}

// Info aggregates the ledger: counts and history oldest-first.
type Info struct {
	Applied int           `json:"applied"`
	Failed  int           `json:"failed"`
	History []HistoryItem `json:"history"`
}

// FromStore collects status information from an opened ledger.
func FromStore(ctx context.Context, st mongorun.Store) (Info, error) {
	recs, err := st.List(ctx, mongorun.Filter{})
	if err != nil {
		return Info{}, err
	}
	return FromRecords(recs), nil
}

// FromRecords builds Info from ledger rows already ordered oldest-first.
func FromRecords(recs []mongorun.Record) Info {
	info := Info{History: make([]HistoryItem, 0, len(recs))}
	for _, r := range recs {
		if r.IsSuccess {
			info.Applied++
		} else {
			info.Failed++
		}
		info.History = append(info.History, HistoryItem{
			ID:          r.ID,
			Collection:  r.Collection,
			Ticket:      r.Ticket,
			Description: r.Description,
			Success:     r.IsSuccess,
			ElapsedMS:   r.ElapsedTime,
			CreatedAt:   r.CreatedTime.UTC().Format(time.RFC3339),
		})
	}
	return info
}

// FromOptions opens the ledger described by cfg, collects status, and closes it.
func FromOptions(ctx context.Context, cfg mongorun.StoreConfig, db mongorun.Database) (Info, error) {
	st, err := mongorun.OpenStore(cfg, db)
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = st.Close() }()
	return FromStore(ctx, st)
}

// FormatHuman returns a multiline summary followed by the newest history
// entries first. limit<=0 prints 10, failedOnly hides successful rows.
func (i Info) FormatHuman(limit int, failedOnly bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "applied: %d\nfailed: %d\n", i.Applied, i.Failed)

	items := make([]HistoryItem, 0, len(i.History))
	for idx := len(i.History) - 1; idx >= 0; idx-- {
		h := i.History[idx]
		if failedOnly && h.Success {
			continue
		}
		items = append(items, h)
	}
	if len(items) == 0 {
		b.WriteString("history: \n")
		return b.String()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	b.WriteString("history:\n")
	for _, h := range items {
		fmt.Fprintf(&b, "%s collection=%s ticket=%s success=%t elapsed=%dms at=%s\n",
			h.ID, h.Collection, h.Ticket, h.Success, h.ElapsedMS, h.CreatedAt)
	}
	return b.String()
}
