package extractor

import (
	"fmt"
	"log/slog"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	mdbase "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/seekjobs/category"
	"github.com/use-agent/seekjobs/models"
)

// Description formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

var (
	titleSel       = cascadia.MustCompile(`[data-automation="job-detail-title"], .j1ww7nx7`)
	companySel     = cascadia.MustCompile(`[data-automation="advertiser-name"], .y735df0`)
	descriptionSel = cascadia.MustCompile(`[data-automation="jobAdDetails"], .YCeva_0`)
	industrySel    = cascadia.MustCompile(`[data-automation="job-detail-classifications"], .j1ww7nx7`)
	workTypeSel    = cascadia.MustCompile(`[data-automation="job-detail-work-type"], .j1ww7nx7`)
	detailSpanSel  = cascadia.MustCompile(`[data-automation="jobDetailsPage"] span`)

	locationBoxSel    = cascadia.MustCompile(`[data-automation="job-detail-location"]`)
	locationStyledSel = cascadia.MustCompile(`a[class*="gepq850"]`)
	anchorSel         = cascadia.MustCompile(`a`)
	locationPageSel   = cascadia.MustCompile(`a[href*="/jobs/in-"][class*="gepq850"]`)
)

// DetailExtractor turns a listing page into a ListingRecord.
// It is safe for concurrent use.
type DetailExtractor struct {
	categorizer *category.Categorizer
	markdown    *converter.Converter
	baseURL     string
}

// NewDetailExtractor creates a DetailExtractor. A nil categorizer means the
// built-in rule table.
func NewDetailExtractor(baseURL string, c *category.Categorizer) *DetailExtractor {
	if c == nil {
		c = category.Default()
	}
	return &DetailExtractor{
		categorizer: c,
		markdown: converter.NewConverter(
			converter.WithPlugins(
				mdbase.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
			),
		),
		baseURL: baseURL,
	}
}

// Extract reads every field of a loaded listing page. Each field is read
// independently: a field that is missing, or whose lookup panics, gets its
// sentinel and the others are unaffected.
func (d *DetailExtractor) Extract(doc *goquery.Document, id, format string) *models.ListingRecord {
	rec := &models.ListingRecord{
		JobID: id,
		URL:   ListingURL(d.baseURL, id),
	}

	rec.Title = field("title", models.TitleNotFound, func() string {
		return textOr(doc.FindMatcher(titleSel), models.TitleNotFound)
	})
	rec.Location = field("location", models.LocationNotFound, func() string {
		return Location(doc)
	})
	rec.Company = field("company", models.CompanyNotFound, func() string {
		return textOr(doc.FindMatcher(companySel), models.CompanyNotFound)
	})
	rec.Description = field("description", models.DescriptionNotFound, func() string {
		return d.description(doc.FindMatcher(descriptionSel), format)
	})
	rec.PostingTime = field("posting_time", models.PostingTimeNotFound, func() string {
		return detailPostingTime(doc)
	})
	rec.Category = field("category", category.Unknown, func() string {
		return d.categorizer.Categorize(rec.Title)
	})
	rec.Industry = field("industry", models.IndustryNotFound, func() string {
		return textOr(doc.FindMatcher(industrySel), models.IndustryNotFound)
	})
	rec.WorkType = field("work_type", models.WorkTypeNotFound, func() string {
		return textOr(doc.FindMatcher(workTypeSel), models.WorkTypeNotFound)
	})

	return rec
}

// field runs fn behind a recover boundary.
func field(name, sentinel string, fn func() string) (v string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("field extraction panicked", "field", name, "panic", fmt.Sprint(r))
			v = sentinel
		}
	}()
	return fn()
}

// Location walks the location fallbacks: the styled anchor inside the
// location container, any anchor inside it, the container's own text, then
// a page-wide location anchor.
func Location(doc *goquery.Document) string {
	if box := doc.FindMatcher(locationBoxSel).First(); box.Length() > 0 {
		if a := box.FindMatcher(locationStyledSel); a.Length() > 0 {
			return textOr(a, models.LocationNotFound)
		}
		if a := box.FindMatcher(anchorSel); a.Length() > 0 {
			return textOr(a, models.LocationNotFound)
		}
		return textOr(box, models.LocationNotFound)
	}
	return textOr(doc.FindMatcher(locationPageSel), models.LocationNotFound)
}

func detailPostingTime(doc *goquery.Document) string {
	age := models.PostingTimeNotFound
	doc.FindMatcher(detailSpanSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := Sanitize(s.Text())
		if hasAgeUnit(t) {
			age = t
			return false
		}
		return true
	})
	return age
}

func (d *DetailExtractor) description(sel *goquery.Selection, format string) string {
	if sel.Length() == 0 {
		return models.DescriptionNotFound
	}
	if format == FormatMarkdown {
		md, err := d.toMarkdown(sel.First())
		if err == nil && md != "" {
			return md
		}
		slog.Debug("markdown description failed, falling back to text", "error", err)
	}
	return textOr(sel, models.DescriptionNotFound)
}

func (d *DetailExtractor) toMarkdown(sel *goquery.Selection) (string, error) {
	inner, err := sel.Html()
	if err != nil {
		return "", err
	}
	md, err := d.markdown.ConvertString(inner, converter.WithDomain(d.baseURL))
	if err != nil {
		return "", err
	}
	return Sanitize(md), nil
}
