package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"portfolio/internal/domain"
)

func TestNormalizeTime(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		value  any
		want   time.Time
		wantOK bool
	}{
		{"time value", want.In(time.FixedZone("X", 3600)), want, true},
		{"rfc3339 string", "2025-03-14T09:30:00Z", want, true},
		{"rfc3339 with offset", "2025-03-14T10:30:00+01:00", want, true},
		{"stored layout", "2025-03-14T09:30:00.000Z", want, true},
		{"date only", "2025-03-14", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{"epoch millis float", float64(want.UnixMilli()), want, true},
		{"epoch millis int64", want.UnixMilli(), want, true},
		{"json number", json.Number("1741944600000"), want, true},
		{"seconds object", map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}, want, true},
		{"underscore seconds object", map[string]any{"_seconds": float64(want.Unix())}, want, true},
		{"empty string", "", time.Time{}, false},
		{"garbage string", "next tuesday", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"bool", true, time.Time{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := domain.NormalizeTime(tc.value)
			if ok != tc.wantOK {
				t.Fatalf("NormalizeTime(%v) ok = %v; want %v", tc.value, ok, tc.wantOK)
			}
			if !got.Equal(tc.want) {
				t.Errorf("NormalizeTime(%v) = %v; want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestFormatTimestampSortsLexically(t *testing.T) {
	a := domain.FormatTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	b := domain.FormatTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 120_000_000, time.UTC))
	if a != "2024-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected layout %q", a)
	}
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
	if domain.FormatTimestamp(time.Time{}) != "" {
		t.Fatal("zero time should format as empty string")
	}
}

func TestItemFieldsRoundTripUsesStoredNames(t *testing.T) {
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	blog := domain.Item{
		Kind: domain.KindBlog, Title: "Go", Summary: "short", Body: "long",
		Tags: []string{"go", "web"}, Date: date, Slug: "go", Status: domain.StatusPublished,
	}
	f := blog.Fields()
	if f["excerpt"] != "short" || f["content"] != "long" {
		t.Fatalf("blog fields use wrong names: %v", f)
	}
	if _, ok := f["summary"]; ok {
		t.Fatal("blog fields should not carry summary")
	}
	got := domain.ItemFromDocument(domain.KindBlog, domain.RawDocument{ID: "b1", Fields: f})
	if got.ID != "b1" || got.Summary != "short" || got.Slug != "go" || !got.Date.Equal(date) {
		t.Fatalf("unexpected decode: %+v", got)
	}

	news := domain.Item{Kind: domain.KindNews, Title: "N", Summary: "s", Category: "Tech"}
	nf := news.Fields()
	if nf["summary"] != "s" || nf["category"] != "Tech" {
		t.Fatalf("news fields use wrong names: %v", nf)
	}
}

func TestItemFromDocumentToleratesLooseTypes(t *testing.T) {
	doc := domain.RawDocument{ID: "n1", Fields: map[string]any{
		"title":    "Hello",
		"tags":     []any{"a", 3, "", "b"},
		"date":     map[string]any{"seconds": float64(1700000000)},
		"readTime": float64(5),
		"featured": "yes",
	}}
	it := domain.ItemFromDocument(domain.KindNews, doc)
	if len(it.Tags) != 2 || it.Tags[0] != "a" || it.Tags[1] != "b" {
		t.Fatalf("tags = %v", it.Tags)
	}
	if it.Date.Unix() != 1700000000 {
		t.Fatalf("date = %v", it.Date)
	}
	if it.ReadTime != "5" {
		t.Fatalf("readTime = %q", it.ReadTime)
	}
	if it.Featured {
		t.Fatal("non-bool featured should decode as false")
	}
	if !it.Published() {
		t.Fatal("documents without status count as published")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := domain.ParseKind("blog"); err != nil || k.Collection() != "blogPosts" || k.ImagePrefix() != "blogImages" {
		t.Fatalf("blog kind: %v %v", k, err)
	}
	if k, err := domain.ParseKind("news"); err != nil || k.Collection() != "news" || k.ImagePrefix() != "newsImages" {
		t.Fatalf("news kind: %v %v", k, err)
	}
	if _, err := domain.ParseKind("podcasts"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
