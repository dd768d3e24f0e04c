package schemas

import (
	"fmt"
	"strings"
	"time"
)

// ConsoleLog is one line the page wrote to its console, or an uncaught
// exception surfaced through the runtime.
type ConsoleLog struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Line      int64     `json:"line,omitempty"`
}

// String renders the entry the way the transcript stores it: "[level] message".
func (l ConsoleLog) String() string {
	return fmt.Sprintf("[%s] %s", l.Type, l.Text)
}

// FormatTranscript joins entries newline separated, in emission order.
func FormatTranscript(logs []ConsoleLog) string {
	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}
