package app

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"portfolio/internal/domain"
)

const (
	maxTitleLength           = 100
	maxSummaryLength         = 300
	maxMetaDescriptionLength = 160
	maxImageSize             = 10 << 20
)

// ValidationError carries one message per offending form field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Form is the editable part of a news item or blog post as submitted by the
// admin UI. Date accepts anything NormalizeTime understands.
type Form struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Body            string   `json:"body"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Date            string   `json:"date"`
	Author          string   `json:"author"`
	ReadTime        string   `json:"readTime"`
	Featured        bool     `json:"featured"`
	Status          string   `json:"status"`
	Slug            string   `json:"slug"`
	MetaDescription string   `json:"metaDescription"`
	Source          string   `json:"source"`
	Location        string   `json:"location"`
}

// Validate checks the form for kind without touching any store. The image,
// when present, must be an image under the size limit.
func Validate(kind domain.Kind, f Form, image *Upload) error {
	var v ValidationError

	required := func(field, value, label string) {
		if strings.TrimSpace(value) == "" {
			v.add(field, label+" is required.")
		}
	}
	maxLen := func(field, value, label string, n int) {
		if utf8.RuneCountInString(value) > n {
			v.add(field, fmt.Sprintf("%s must be at most %d characters.", label, n))
		}
	}

	required("title", f.Title, "Title")
	maxLen("title", f.Title, "Title", maxTitleLength)
	required("body", f.Body, "Content")
	required("summary", f.Summary, summaryLabel(kind))
	maxLen("summary", f.Summary, summaryLabel(kind), maxSummaryLength)

	if strings.TrimSpace(f.Date) == "" {
		v.add("date", "Publish date is required.")
	} else if _, ok := domain.NormalizeTime(f.Date); !ok {
		v.add("date", "Publish date is not a valid date.")
	}

	switch f.Status {
	case "", domain.StatusPublished, domain.StatusDraft, domain.StatusArchived:
	default:
		v.add("status", "Status must be published, draft or archived.")
	}

	switch kind {
	case domain.KindNews:
		required("category", f.Category, "Category")
		required("author", f.Author, "Author")
		maxLen("metaDescription", f.MetaDescription, "Meta description", maxMetaDescriptionLength)
	case domain.KindBlog:
		if len(cleanTags(f.Tags)) == 0 {
			v.add("tags", "At least one tag is required.")
		}
		if f.Slug != "" && !slugPattern.MatchString(f.Slug) {
			v.add("slug", "Slug may only contain lowercase letters, digits and dashes.")
		}
	}

	if image != nil {
		if !strings.HasPrefix(strings.ToLower(image.ContentType), "image/") {
			v.add("image", "Image must be an image file.")
		}
		if image.Size > maxImageSize {
			v.add("image", "Image must be smaller than 10 MB.")
		}
	}

	return v.orNil()
}

func summaryLabel(kind domain.Kind) string {
	if kind == domain.KindBlog {
		return "Excerpt"
	}
	return "Summary"
}

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a URL slug from a title.
func Slugify(title string) string {
	s := slugSeparator.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// item converts a validated form into an Item for kind.
func (f Form) item(kind domain.Kind) domain.Item {
	date, _ := domain.NormalizeTime(f.Date)
	status := f.Status
	if status == "" {
		status = domain.StatusPublished
	}
	it := domain.Item{
		Kind:     kind,
		Title:    strings.TrimSpace(f.Title),
		Summary:  strings.TrimSpace(f.Summary),
		Body:     f.Body,
		Tags:     cleanTags(f.Tags),
		Date:     date.Truncate(time.Millisecond),
		Author:   strings.TrimSpace(f.Author),
		ReadTime: strings.TrimSpace(f.ReadTime),
		Featured: f.Featured,
		Status:   status,
	}
	switch kind {
	case domain.KindNews:
		it.Category = strings.TrimSpace(f.Category)
		it.MetaDescription = strings.TrimSpace(f.MetaDescription)
		it.Source = strings.TrimSpace(f.Source)
		it.Location = strings.TrimSpace(f.Location)
	case domain.KindBlog:
		it.Slug = f.Slug
		if it.Slug == "" {
			it.Slug = Slugify(it.Title)
		}
	}
	return it
}
