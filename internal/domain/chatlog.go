package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChatLog is one stored exchange line in a room. The log field carries a
// timestamped transcript line, e.g. "[2025-01-02 10:04:00] user: hello".
type ChatLog struct {
	SessionID string
	ChatID    string
	Log       string
	StartTime time.Time
	EndTime   time.Time
}

const logTimeLayout = "2006-01-02 15:04:05"

// FormatLogLine renders a transcript line for storage.
func FormatLogLine(at time.Time, sender, content string) string {
	return fmt.Sprintf("[%s] %s: %s", at.Format(logTimeLayout), sender, content)
}

// TranscriptHistory flattens recent logs (oldest first) into the plain-text
// history the LLM service expects, keeping only user and chatbot lines.
func TranscriptHistory(logs []ChatLog) string {
	var b strings.Builder
	for _, l := range logs {
		for _, line := range strings.Split(l.Log, "\n") {
			if strings.Contains(line, "user:") || strings.Contains(line, "chatbot:") {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
