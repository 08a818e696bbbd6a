package fetch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rssSource() model.Source {
	return model.Source{
		ID:              model.SourceID(model.KindRSS, "https://example.com/rss"),
		Kind:            model.KindRSS,
		Name:            "Deadline",
		Address:         "https://example.com/rss",
		IntervalMinutes: 15,
	}
}

func TestRSSFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	f := NewRSS(&mockTransport{body: xml, statusCode: 200}, discard())
	cands, err := f.Fetch(context.Background(), rssSource())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(cands) != 8 {
		t.Fatalf("want 8 candidates, got %d", len(cands))
	}

	first := cands[0]
	if diff := cmp.Diff("deadline-1001", first.ExternalID); diff != "" {
		t.Errorf("external id mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("A24 Closes $250M Production Facility", first.Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	// HTML must be stripped from descriptions.
	if diff := cmp.Diff("The indie studio locks in new financing for its slate.", first.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if first.PublishedAt.IsZero() {
		t.Error("published time must be parsed")
	}
	if len(first.MediaURLs) != 0 {
		t.Error("rss candidates carry no media")
	}
}

func TestRSSFetchClassification(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		wantKind  Kind
	}{
		{"network error", &mockTransport{err: io.ErrUnexpectedEOF}, Transient},
		{"server error", &mockTransport{body: "oops", statusCode: 503}, Transient},
		{"rate limited", &mockTransport{body: "slow down", statusCode: 429}, Transient},
		{"unauthorized", &mockTransport{body: "denied", statusCode: 401}, AuthFailure},
		{"forbidden", &mockTransport{body: "denied", statusCode: 403}, AuthFailure},
		{"gone", &mockTransport{body: "no feed", statusCode: 404}, Malformed},
		{"unparseable", &mockTransport{body: "not xml at all", statusCode: 200}, Malformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRSS(tt.transport, discard())
			_, err := f.Fetch(context.Background(), rssSource())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("want kind %s, got %s (%v)", tt.wantKind, got, err)
			}
		})
	}
}

func TestSanitizeClampsOnRuneBoundary(t *testing.T) {
	// A multi-byte character straddling the clamp must survive intact;
	// a byte-indexed cut would leave a dangling lead byte.
	in := strings.Repeat("a", 299) + "éé"
	got := sanitize(in, 300)
	if !utf8.ValidString(got) {
		t.Fatalf("clamped text is not valid UTF-8: tail %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "é...") {
		t.Errorf("want clamp after the 300th rune, got tail %q", got[len(got)-8:])
	}
	if short := sanitize("plain", 300); short != "plain" {
		t.Errorf("short text must pass through, got %q", short)
	}
}

func TestEntryGUIDFallback(t *testing.T) {
	xml := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
		<item><title>No guid here</title><link>https://example.com/a</link></item>
		</channel></rss>`

	f := NewRSS(&mockTransport{body: xml, statusCode: 200}, discard())
	cands, err := f.Fetch(context.Background(), rssSource())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("want 1 candidate, got %d", len(cands))
	}
	if cands[0].ExternalID != "https://example.com/a" {
		t.Errorf("want link fallback as external id, got %q", cands[0].ExternalID)
	}
}
