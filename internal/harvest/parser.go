package harvest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// CardSelector matches one listing entry in the rendered page.
const CardSelector = "li.usa-card"

// pageIndexStride spaces synthetic fallback IDs so they stay unique across
// pages as well as within one.
const pageIndexStride = 1000

var (
	mugshotHashPattern = regexp.MustCompile(`(?i)wow-mugshot-([a-f0-9]+)\.(?:jpg|png)`)
	imageBasePattern   = regexp.MustCompile(`/([^/]+)\.(?:jpg|png)`)
	idCharPattern      = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	gangLabelPattern   = regexp.MustCompile(`(?i)Gang\s+Affiliation\s*:\s*`)
)

// Parser extracts records from listing markup.
type Parser struct {
	base   *url.URL
	logger *zap.Logger
}

// NewParser builds a Parser that resolves image references against baseURL.
func NewParser(baseURL string, logger *zap.Logger) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{base: base, logger: logger}, nil
}

// ParseCards extracts every valid card from one page of rendered markup.
// Fragments missing a required field are dropped; the rest are returned in
// document order. The page number feeds synthetic fallback IDs.
func (p *Parser) ParseCards(markup string, page int) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse page markup: %w", err)
	}

	var records []Record
	doc.Find(CardSelector).Each(func(i int, sel *goquery.Selection) {
		rec, ok := p.parseCard(sel, page*pageIndexStride+i)
		if !ok {
			CardsDropped.Inc()
			p.logger.Debug("dropping malformed card",
				zap.Int("page", page),
				zap.Int("card", i),
			)
			return
		}
		CardsParsed.Inc()
		records = append(records, rec)
	})
	return records, nil
}

// parseCard turns one card fragment into a Record. It reports false when any
// required field (heading, name, crime, location, image source) is absent.
func (p *Parser) parseCard(sel *goquery.Selection, fallbackIndex int) (Record, bool) {
	heading := sel.Find("h2.usa-card__heading").First()
	nameEl := sel.Find(".usa-card_name").First()
	crimeEl := sel.Find(".usa-card__crime").First()
	locEl := sel.Find(".usa-card__location").First()
	img := sel.Find(".usa-card__media img").First()
	if heading.Length() == 0 || nameEl.Length() == 0 || crimeEl.Length() == 0 ||
		locEl.Length() == 0 || img.Length() == 0 {
		return Record{}, false
	}

	src, _ := img.Attr("src")
	if src == "" {
		return Record{}, false
	}
	pictureURL := src
	if resolved, err := p.base.Parse(src); err == nil {
		pictureURL = resolved.String()
	}

	name := stripLabel(nameEl, "Name:")
	if name == "" {
		name = "Unknown"
	}

	return Record{
		ID:              deriveID(src, fallbackIndex),
		Name:            name,
		Country:         cleanText(heading.Text()),
		Arrested:        stripLabel(locEl, "Arrested:"),
		ConvictedOf:     splitCrimes(stripLabel(crimeEl, "Convicted of:")),
		GangAffiliation: p.gangAffiliation(sel),
		PictureURL:      pictureURL,
	}, true
}

// gangAffiliation prefers the dedicated sub-element and falls back to
// scanning the card body for a labeled block. Absence is an empty string,
// not an error.
func (p *Parser) gangAffiliation(sel *goquery.Selection) string {
	if gang := sel.Find(".usa-card__gang").First(); gang.Length() > 0 {
		return strings.TrimSpace(gangLabelPattern.ReplaceAllString(cleanText(gang.Text()), ""))
	}
	var affiliation string
	sel.Find(".usa-card__body > div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		text := cleanText(div.Text())
		if !strings.Contains(text, "Gang Affiliation") {
			return true
		}
		affiliation = strings.TrimSpace(gangLabelPattern.ReplaceAllString(text, ""))
		return false
	})
	return affiliation
}

// deriveID picks the most stable identifier available: the hex hash embedded
// in the image filename survives re-scrapes even when a name changes; a
// sanitized base filename is next best; a page-scoped index is the last
// resort.
func deriveID(src string, fallbackIndex int) string {
	if m := mugshotHashPattern.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	if m := imageBasePattern.FindStringSubmatch(src); m != nil {
		if id := idCharPattern.ReplaceAllString(m[1], "_"); id != "" {
			return id
		}
	}
	return fmt.Sprintf("idx%d", fallbackIndex)
}

// splitCrimes breaks the raw comma-joined crime text into trimmed entries,
// dropping empties.
func splitCrimes(raw string) []string {
	crimes := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			crimes = append(crimes, part)
		}
	}
	return crimes
}

// stripLabel returns the element's text with its field label prefix removed.
func stripLabel(el *goquery.Selection, label string) string {
	text := cleanText(el.Text())
	return strings.TrimSpace(strings.TrimPrefix(text, label))
}

// cleanText trims whitespace and normalizes non-breaking spaces.
func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, " ", " "))
}
