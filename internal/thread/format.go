package thread

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/tally/pkg/relay"
)

// OutputFormat specifies how a resolved thread is written.
type OutputFormat string

const (
	// OutputFormatText is the flat block handed to the analysis step
	OutputFormatText OutputFormat = "text"

	// OutputFormatJSONL outputs one reply per line as JSON
	OutputFormatJSONL OutputFormat = "jsonl"

	// OutputFormatTable is a compact table for terminals
	OutputFormatTable OutputFormat = "table"
)

// ParseOutputFormat validates a format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatText, OutputFormatJSONL, OutputFormatTable:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// SortReplies orders replies most recent first. Equal timestamps fall back to
// id order so the result does not depend on input order.
func SortReplies(replies []relay.Event) {
	sort.SliceStable(replies, func(i, j int) bool {
		if replies[i].CreatedAt != replies[j].CreatedAt {
			return replies[i].CreatedAt > replies[j].CreatedAt
		}
		return replies[i].ID < replies[j].ID
	})
}

// authorLabel returns the display label for pk, or "Anonymous".
func authorLabel(authors map[relay.PubKey]relay.Profile, pk relay.PubKey) string {
	if p, ok := authors[pk]; ok {
		return p.Label()
	}
	return relay.AnonymousName
}

// Format renders the root and replies as the flat text block consumed by the
// analysis step. Replies are numbered in the order given; sort them first.
func Format(root relay.Event, replies []relay.Event, authors map[relay.PubKey]relay.Profile) string {
	var b strings.Builder

	b.WriteString("ORIGINAL POST:\n")
	fmt.Fprintf(&b, "Author: %s\n", authorLabel(authors, root.Author))
	fmt.Fprintf(&b, "Content: %s\n\n", root.Content)

	fmt.Fprintf(&b, "REPLIES (%d total):\n\n", len(replies))

	for i, reply := range replies {
		fmt.Fprintf(&b, "Reply %d:\n", i+1)
		fmt.Fprintf(&b, "Author: %s\n", authorLabel(authors, reply.Author))
		fmt.Fprintf(&b, "Content: %s\n", reply.Content)
		fmt.Fprintf(&b, "Pubkey: %s\n", reply.Author)
		fmt.Fprintf(&b, "EventId: %s\n\n", reply.ID)
	}

	return b.String()
}

// jsonlReply is the line shape written by FormatJSONL.
type jsonlReply struct {
	ID        relay.EventID `json:"id"`
	Pubkey    relay.PubKey  `json:"pubkey"`
	Author    string        `json:"author"`
	Content   string        `json:"content"`
	CreatedAt int64         `json:"created_at"`
	Lud16     string        `json:"lud16,omitempty"`
}

// FormatJSONL writes replies as line-delimited JSON, one reply per line.
// This format is ideal for piping to jq.
func FormatJSONL(w io.Writer, replies []relay.Event, authors map[relay.PubKey]relay.Profile) error {
	for _, reply := range replies {
		line := jsonlReply{
			ID:        reply.ID,
			Pubkey:    reply.Author,
			Author:    authorLabel(authors, reply.Author),
			Content:   reply.Content,
			CreatedAt: reply.CreatedAt,
			Lud16:     authors[reply.Author].Lud16,
		}

		data, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("failed to marshal reply to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatTable writes the root and replies as a compact table.
// Returns the number of replies written.
func FormatTable(w io.Writer, root relay.Event, replies []relay.Event, authors map[relay.PubKey]relay.Profile, now time.Time) int {
	fmt.Fprintf(w, "Thread %s by %s: %s\n\n", root.ID.Short(), formatAuthor(authorLabel(authors, root.Author)), formatContent(root.Content))

	if len(replies) == 0 {
		fmt.Fprintf(w, "No replies found for thread '%s'\n", root.ID.Short())
		return 0
	}

	fmt.Fprintf(w, "%-4s %-10s %-18s %-8s %s\n",
		"#", "ID", "AUTHOR", "AGE", "CONTENT")
	fmt.Fprintf(w, "%-4s %-10s %-18s %-8s %s\n",
		"----", "----------", "------------------", "--------", "----------------------------------------")

	for i, r := range replies {
		fmt.Fprintf(w, "%-4d %-10s %-18s %-8s %s\n",
			i+1,
			r.ID.Short(),
			formatAuthor(authorLabel(authors, r.Author)),
			formatAge(r.CreatedAt, now),
			formatContent(r.Content),
		)
	}

	noun := "reply"
	if len(replies) != 1 {
		noun = "replies"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(replies), noun)

	return len(replies)
}

// formatAuthor truncates long display names for the table.
func formatAuthor(name string) string {
	if len([]rune(name)) > 18 {
		return string([]rune(name)[:15]) + "..."
	}
	return name
}

// formatContent returns the first non-empty line, at most 40 characters.
// Empty content returns "-".
func formatContent(content string) string {
	var firstLine string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}

	if runes := []rune(firstLine); len(runes) > 40 {
		return string(runes[:37]) + "..."
	}
	return firstLine
}

// formatAge renders a Unix-seconds timestamp relative to now ("5m ago").
func formatAge(createdAt int64, now time.Time) string {
	if createdAt == 0 {
		return "-"
	}

	diff := now.Sub(time.Unix(createdAt, 0))
	switch {
	case diff < 0:
		return "now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
