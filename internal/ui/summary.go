package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/tasks"
)

// Summary renders the outcome of a build. err is the error returned by the build, if any.
func Summary(res *tasks.BuildResult, err error) string {
	var b strings.Builder

	if res == nil {
		b.WriteString(styles.Err(fmt.Sprintf("✗ Build failed: %v", err)))
		b.WriteString("\n")
		return b.String()
	}

	switch {
	case res.Playlist != nil && err == nil:
		b.WriteString(styles.OK(fmt.Sprintf("✓ Playlist created: %s", res.PlaylistName)))
	case res.Status == models.RunNoMatches:
		b.WriteString(styles.Warn(fmt.Sprintf("⚠ No tracks matched, playlist %q was not created", res.PlaylistName)))
	default:
		b.WriteString(styles.Err(fmt.Sprintf("✗ Build failed: %v", err)))
	}
	b.WriteString("\n")

	total := len(res.Tracks)
	added, skipped := 0, total
	if res.Playlist != nil {
		added, skipped = res.Playlist.AddedCount, res.Playlist.SkippedCount
	}

	source := string(res.Source)
	if res.Strategy != "" {
		source = fmt.Sprintf("%s (%s)", source, res.Strategy)
	}
	fmt.Fprintf(&b, "  Source:  %s\n", source)
	if res.Playlist != nil && res.Playlist.PlaylistURL != "" {
		fmt.Fprintf(&b, "  URL:     %s\n", res.Playlist.PlaylistURL)
	}
	fmt.Fprintf(&b, "  Added:   %d/%d (skipped %d)\n", added, total, skipped)

	if total > 0 {
		exact, fuzzy, none := res.Counts()
		fmt.Fprintf(&b, "  Matches: exact %d, fuzzy %d, none %d\n", exact, fuzzy, none)
	}

	if res.AuditErr != nil {
		b.WriteString(styles.Warn(fmt.Sprintf("  Audit not recorded: %v", res.AuditErr)))
		b.WriteString("\n")
	}

	missing := res.Missing()
	if len(missing) == 0 {
		return b.String()
	}

	failed := res.Playlist.FailedPositions()
	b.WriteString("\n")
	b.WriteString(styles.Warn(fmt.Sprintf("%d entries not added:", len(missing))))
	b.WriteString("\n")
	for _, t := range missing {
		fmt.Fprintf(&b, "  • #%d %s - %s %s\n", t.Entry.Position, t.Entry.RawArtist, t.Entry.RawTitle,
			styles.Help(reason(t, failed)))
	}

	return b.String()
}

func reason(t models.ResolvedTrack, failed map[int]bool) string {
	outcome := models.OutcomeOf(t, failed)
	if outcome == models.OutcomeExact || outcome == models.OutcomeFuzzy {
		return "(not added)"
	}
	if t.Err != nil {
		return fmt.Sprintf("(%s: %v)", outcome, t.Err)
	}
	return fmt.Sprintf("(%s)", outcome)
}

// Progress formats a progress update as a single line.
func Progress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.ResolveTracks:
		if t, ok := u.Data.(models.ResolvedTrack); ok && t.Confidence == models.MatchNone {
			return styles.Warn("→ " + u.Message)
		}
	case tasks.AddTracks:
		if strings.Contains(u.Message, "✗") {
			return styles.Warn("→ " + u.Message)
		}
	case tasks.RecordAudit:
		if strings.HasPrefix(u.Message, "Audit failed") {
			return styles.Warn("→ " + u.Message)
		}
	}
	return "→ " + u.Message
}
