// Package format renders CLI results as tables or JSON.
package format

import (
	"encoding/json"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nfrund/parley/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

// Users renders one row per user. Password hashes are never shown.
func Users(w io.Writer, users ...*domain.User) {
	table := newTable(w, []string{"ID", "Email", "Name", "Created"})
	for _, u := range users {
		table.Append([]string{u.ID, u.Email, u.Name, stamp(u.CreatedAt)})
	}
	table.Render()
}

// Messages renders a history page in the order given.
func Messages(w io.Writer, msgs []domain.ResolvedMessage) {
	table := newTable(w, []string{"Time", "Sender", "Message"})
	for _, m := range msgs {
		table.Append([]string{stamp(m.CreatedAt), m.Sender.Name, truncate(m.Body, 60)})
	}
	table.Render()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
