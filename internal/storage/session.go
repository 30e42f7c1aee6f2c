package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SessionNamingStrategy defines how to name session output directories
type SessionNamingStrategy int

const (
	// SessionUUID uses the full run ID
	SessionUUID SessionNamingStrategy = iota
	// SessionTimestamp uses timestamp + short ID
	SessionTimestamp
	// SessionDescriptive uses timestamp + a slug of the seed prompt + short ID
	SessionDescriptive
)

// ParseSessionNaming maps a config value to a strategy.
func ParseSessionNaming(s string) (SessionNamingStrategy, error) {
	switch strings.ToLower(s) {
	case "", "descriptive":
		return SessionDescriptive, nil
	case "timestamp":
		return SessionTimestamp, nil
	case "uuid":
		return SessionUUID, nil
	default:
		return 0, fmt.Errorf("unknown session naming %q", s)
	}
}

// SessionPath returns the directory, relative to the output directory, that
// holds the artifacts of one run.
func SessionPath(runID, seedPrompt string, strategy SessionNamingStrategy, now time.Time) string {
	shortID := runID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	switch strategy {
	case SessionTimestamp:
		// 2025-07-16_1530_82f06b15
		return filepath.Join("sessions", fmt.Sprintf("%s_%s", now.Format("2006-01-02_1504"), shortID))
	case SessionDescriptive:
		// 2025-07-16_1530_a-brave-turtle-helps-his_82f06b15
		return filepath.Join("sessions", fmt.Sprintf("%s_%s_%s", now.Format("2006-01-02_1504"), Slug(seedPrompt, 30), shortID))
	default:
		return filepath.Join("sessions", runID)
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a string to a safe filename component of at most maxLen bytes.
func Slug(s string, maxLen int) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}

	if s == "" {
		s = "book"
	}
	return s
}

// SessionInfo is written as session.md next to the generated book.
type SessionInfo struct {
	SessionID   string
	SeedPrompt  string
	Model       string
	ImageModel  string
	StartedAt   time.Time
	ResumedFrom string
}

func (s SessionInfo) Markdown() []byte {
	var b strings.Builder
	b.WriteString("# Session Metadata\n\n")
	fmt.Fprintf(&b, "**Session ID**: %s\n", s.SessionID)
	fmt.Fprintf(&b, "**Date**: %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Model**: %s\n", s.Model)
	fmt.Fprintf(&b, "**Image model**: %s\n", s.ImageModel)
	fmt.Fprintf(&b, "**Prompt**: %s\n", s.SeedPrompt)
	if s.ResumedFrom != "" {
		fmt.Fprintf(&b, "**Resumed from**: %s\n", s.ResumedFrom)
	}
	b.WriteString("\n## Output Files\n\n")
	b.WriteString("- `book.md`: the rendered book\n")
	b.WriteString("- `document.json`: the document after the last completed stage, usable with --resume\n")
	b.WriteString("- `images.json`: character illustrations\n")
	b.WriteString("- `metrics.prom`: request metrics for this run\n")
	return []byte(b.String())
}
