package bot

import (
	"fmt"
	"strings"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

const dateLayout = "2006-01-02"

// FormatNotification renders the triage notification for a new post.
func FormatNotification(post *model.Post, sourceName string) string {
	var b strings.Builder

	icon := "📰"
	if post.Kind == model.KindInstagram {
		icon = "📸"
	}
	fmt.Fprintf(&b, "%s [%s] %s\n\n", icon, sourceName, post.PublishedAt.Format(dateLayout))

	if post.Title != "" {
		b.WriteString(post.Title)
	} else {
		b.WriteString("(no caption)")
	}
	if post.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(post.Summary)
	}

	if extras := formatMeta(post.Meta); extras != "" {
		b.WriteString("\n\n")
		b.WriteString(extras)
	}
	if post.URL != "" {
		b.WriteString("\n\n")
		b.WriteString(post.URL)
	}
	return b.String()
}

// FormatVaultPage renders one page of a vault listing.
func FormatVaultPage(status model.Status, page int, posts []model.Post) string {
	if len(posts) == 0 {
		if page == 1 {
			return fmt.Sprintf("No %s posts yet.", status)
		}
		return fmt.Sprintf("No more %s posts (page %d is empty).", status, page)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s — page %d\n", strings.ToUpper(string(status)), page)
	for i, p := range posts {
		title := p.Title
		if title == "" {
			title = "(no caption)"
		}
		fmt.Fprintf(&b, "\n%d. %s\n   %s · %s\n", i+1, clampTitle(title), p.Kind, p.PublishedAt.Format(dateLayout))
	}
	b.WriteString("\nTap a number for details and re-triage.")
	return b.String()
}

// FormatPostDetail renders the vault detail card for one post.
func FormatPostDetail(post *model.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", statusBadge(post.Status))
	if post.Title != "" {
		fmt.Fprintf(&b, "\n%s\n", post.Title)
	}
	if post.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", post.Summary)
	}
	fmt.Fprintf(&b, "\nKind: %s\nPublished: %s\nFetched: %s\n",
		post.Kind, post.PublishedAt.Format(dateLayout), post.FetchedAt.Format(dateLayout))
	if extras := formatMeta(post.Meta); extras != "" {
		fmt.Fprintf(&b, "\n%s\n", extras)
	}
	if len(post.Media) > 0 {
		fmt.Fprintf(&b, "\nMedia: %d file(s)\n", len(post.Media))
	}
	if post.URL != "" {
		fmt.Fprintf(&b, "\n%s", post.URL)
	}
	return b.String()
}

// FormatSearchResults renders a keyword query's hits.
func FormatSearchResults(query string, posts []model.Post) string {
	if len(posts) == 0 {
		return fmt.Sprintf("No posts match %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", query)
	for i, p := range posts {
		fmt.Fprintf(&b, "\n%d. %s\n   %s · %s · %s\n", i+1, clampTitle(p.Title), p.Kind, p.Status, p.PublishedAt.Format(dateLayout))
	}
	b.WriteString("\nTap a number for details.")
	return b.String()
}

// FormatStats renders post counts grouped by status.
func FormatStats(counts map[model.Status]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	var b strings.Builder
	b.WriteString("Vault stats:\n")
	fmt.Fprintf(&b, "\n⏳ Pending: %d", counts[model.StatusPending])
	fmt.Fprintf(&b, "\n✅ Approved: %d", counts[model.StatusApproved])
	fmt.Fprintf(&b, "\n📁 Archived: %d", counts[model.StatusArchived])
	fmt.Fprintf(&b, "\n❌ Erased: %d", counts[model.StatusErased])
	fmt.Fprintf(&b, "\n\nTotal: %d", total)
	return b.String()
}

// FormatSourceList renders the monitored sources with their polling state.
func FormatSourceList(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources configured."
	}
	var b strings.Builder
	b.WriteString("Monitored sources:\n")
	for _, s := range sources {
		state := "active"
		if s.Paused {
			state = "paused"
		}
		fmt.Fprintf(&b, "\n%s %s  (every %d min) [%s]\n   id: %s\n", sourceIcon(s.Kind), s.Name, s.IntervalMinutes, state, s.ID)
		if s.FailureCount > 0 {
			fmt.Fprintf(&b, "   %d consecutive failure(s)\n", s.FailureCount)
		}
		if s.LastCheckAt != nil {
			fmt.Fprintf(&b, "   last ok: %s\n", s.LastCheckAt.Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String()
}

// clampTitle limits a listing line to 80 runes, never splitting a
// multi-byte character.
func clampTitle(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func sourceIcon(kind model.SourceKind) string {
	if kind == model.KindInstagram {
		return "📸"
	}
	return "📰"
}

func formatMeta(meta model.Metadata) string {
	var parts []string
	if len(meta.Hashtags) > 0 {
		tags := make([]string, 0, len(meta.Hashtags))
		for _, t := range meta.Hashtags {
			tags = append(tags, "#"+t)
		}
		parts = append(parts, strings.Join(tags, " "))
	}
	if meta.Location != "" {
		parts = append(parts, "📍 "+meta.Location)
	}
	if len(meta.TaggedUsers) > 0 {
		parts = append(parts, "👥 @"+strings.Join(meta.TaggedUsers, " @"))
	}
	if meta.ViewCount > 0 {
		parts = append(parts, fmt.Sprintf("▶ %d views", meta.ViewCount))
	}
	return strings.Join(parts, "\n")
}
