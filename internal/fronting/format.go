package fronting

import "strings"

// Cleaning selects platform-specific character restrictions applied to
// member names before publishing.
type Cleaning int

const (
	NoClean Cleaning = iota
	// CleanForVRChat keeps printable ASCII only; VRChat rejects most other
	// characters in status text.
	CleanForVRChat
)

// Format describes how a snapshot becomes one canonical status string.
type Format struct {
	// MaxLength caps the final string; 0 means unlimited.
	MaxLength int
	Cleaning  Cleaning
	// Prefix is prepended verbatim when at least one fronter is present.
	Prefix string
	// StatusIfNoFronters replaces the whole status when the snapshot is empty.
	StatusIfNoFronters string
	// TruncateNamesTo shortens each name to this many runes when the full
	// status would exceed MaxLength; 0 disables name truncation.
	TruncateNamesTo int
}

// FormatStatus renders the canonical status text for a snapshot.
func FormatStatus(f Format, snap Snapshot) string {
	if len(snap.Fronters) == 0 {
		return clip(f.StatusIfNoFronters, f.MaxLength)
	}

	names := make([]string, 0, len(snap.Fronters))
	for _, fr := range snap.Fronters {
		names = append(names, cleanName(fr.Name, f.Cleaning))
	}

	status := render(f.Prefix, names)

	if f.MaxLength > 0 && len([]rune(status)) > f.MaxLength && f.TruncateNamesTo > 0 {
		truncated := make([]string, 0, len(names))
		for _, n := range names {
			truncated = append(truncated, truncateRunes(n, f.TruncateNamesTo))
		}
		status = render(f.Prefix, truncated)
	}

	return clip(status, f.MaxLength)
}

func render(prefix string, names []string) string {
	joined := strings.Join(names, ", ")
	if prefix == "" {
		return joined
	}
	return prefix + joined
}

func cleanName(name string, c Cleaning) string {
	if c != CleanForVRChat {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if r >= 32 && r < 127 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clip(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	return truncateRunes(s, maxLen)
}
