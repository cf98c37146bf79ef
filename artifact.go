package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	transcriptTimeFormat = "2006-01-02 15:04:05"
	artifactStampFormat  = "20060102_150405"
)

// FormatTranscript renders one line per message, in the given order
func FormatTranscript(messages []Message, users map[string]string) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		author := msg.Author()
		if name, ok := users[author]; ok && name != "" {
			author = name
		}
		lines = append(lines, fmt.Sprintf("[%s] <%s>: %s",
			msg.Time().Format(transcriptTimeFormat), author, msg.Text))
	}
	return strings.Join(lines, "\n")
}

// Artifact is one channel digest ready to be written
type Artifact struct {
	ChannelID    string
	ChannelName  string
	WindowDays   int
	MessageCount int
	GeneratedAt  time.Time
	Body         string
}

// FileName is the channel name plus the generation stamp
func (a Artifact) FileName() string {
	return fmt.Sprintf("%s_%s.md", sanitizeFileName(a.ChannelName), a.GeneratedAt.Format(artifactStampFormat))
}

// Render produces the Markdown document with its metadata header
func (a Artifact) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Summary for #%s\n\n", a.ChannelName)
	fmt.Fprintf(&sb, "Generated: %s\n", a.GeneratedAt.Format(transcriptTimeFormat))
	fmt.Fprintf(&sb, "Channel ID: %s\n", a.ChannelID)
	fmt.Fprintf(&sb, "Time Range: Last %d days\n", a.WindowDays)
	fmt.Fprintf(&sb, "Message Count: %d\n", a.MessageCount)
	sb.WriteString("\n---\n\n")
	sb.WriteString(a.Body)
	return sb.String()
}

// WriteArtifact stores the artifact in dir and returns its path.
// Existing files are never touched unless the exact name is reused.
func WriteArtifact(dir string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, a.FileName())
	if err := writeFileAtomic(path, []byte(a.Render()), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return path, nil
}

// sanitizeFileName keeps channel names usable as file names
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "channel"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
