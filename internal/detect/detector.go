// Package detect locates sensitive character ranges in reconstructed
// statement lines using an ordered cascade of pattern rules gated by
// layout context.
package detect

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/inkveil/inkveil/internal/layout"
	"github.com/inkveil/inkveil/internal/scene"
)

// Span is a half-open character range over a line's concatenated text.
type Span struct {
	Start int
	End   int
}

// Match is one sensitive range found on a page line.
type Match struct {
	Line      int
	Span      Span
	Rule      string
	WholeLine bool
}

// Fixed patterns. The vocabulary-driven gates live in Config; these
// shapes are structural and not locale-tunable.
var (
	dateRe = regexp.MustCompile(
		`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b|` +
			`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\s,]+\d{2,4}\b`)
	moneyRe = regexp.MustCompile(
		`[$£€₹]\s?\d[\d,]*(?:\.\d+)?|\b\d{1,3}(?:,\d{3})+(?:\.\d{2})?\b|\b\d+\.\d{2}\b`)

	cardFullRe    = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	cardMaskedRe  = regexp.MustCompile(`(?i)(?:[x*•]{2,6}[ -]?){2,4}\d{2,4}`)
	cardEndingRe  = regexp.MustCompile(`(?i)\bending\s+(?:in\s+)?\d{4}\b`)
	accountNumRe  = regexp.MustCompile(`\b\d{9,18}\b`)
	ibanRe        = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	maskedAcctRe  = regexp.MustCompile(`(?i)\b[x*]{4,12}\d{3,6}\b`)
	ssnRe         = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	sinRe         = regexp.MustCompile(`\b\d{3}[ -]\d{3}[ -]\d{3}\b`)
	panIDRe       = regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)
	ninoRe        = regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`)
	emailRe       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe       = regexp.MustCompile(`(?:\+\d{1,3}[ -]?)?(?:\(\d{3}\)[ -]?|\b\d{3}[ -])\d{3}[ -]\d{4}\b|\b[6-9]\d{9}\b`)
	postalRe      = regexp.MustCompile(`(?i)\b[A-Z]\d[A-Z]\s?\d[A-Z]\d\b|\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b|\b\d{5}(?:-\d{4})?\b|\b\d{6}\b`)
	capSeqRe      = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	allCapsNameRe = regexp.MustCompile(`^\s*[A-Z][A-Z.'-]+(?:\s+[A-Z][A-Z.'-]*){1,4}\s*$`)
	mixedNameRe   = regexp.MustCompile(`^\s*(?:[A-Z][a-z]+[.,]?\s+){1,3}[A-Z][a-z]+\s*$`)
	streetNumRe   = regexp.MustCompile(`^\s*\d{1,5}[A-Za-z]?\s+[A-Za-z]`)
	poBoxRe       = regexp.MustCompile(`(?i)\bP\.?\s?O\.?\s*Box\b`)
)

// Detector runs the cascade over reconstructed lines.
type Detector struct {
	cfg      Config
	stoplist map[string]struct{}
}

// NewDetector builds a detector for the given vocabulary. A zero
// TopRegionFraction falls back to the default.
func NewDetector(cfg Config) *Detector {
	if cfg.TopRegionFraction <= 0 {
		cfg.TopRegionFraction = DefaultConfig().TopRegionFraction
	}
	if cfg.RectPadding <= 0 {
		cfg.RectPadding = DefaultConfig().RectPadding
	}
	stop := make(map[string]struct{}, len(cfg.NameStoplist))
	for _, w := range cfg.NameStoplist {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Detector{cfg: cfg, stoplist: stop}
}

// lineContext carries the per-line gates computed once before the rules
// run. Later rules consult flags set by earlier ones (cardFound).
type lineContext struct {
	text      string
	lower     string
	topRegion bool
	isTxnRow  bool
	cardFound bool
}

// DetectPage runs the cascade over one page worth of lines and returns
// every matched range. Overlapping matches from different rules are all
// kept; the whole-line address heuristic supersedes finer matches on
// its line.
func (d *Detector) DetectPage(lines []*layout.Line, pageHeight float64) []Match {
	var out []Match
	for i, ln := range lines {
		if ln.Text == "" {
			continue
		}
		ctx := d.newLineContext(ln, pageHeight)

		if d.matchesAddressLine(ctx) {
			out = append(out, Match{
				Line:      i,
				Span:      Span{Start: 0, End: len(ln.Text)},
				Rule:      "address_line",
				WholeLine: true,
			})
			continue
		}

		for _, r := range d.rules() {
			for _, sp := range r.find(ctx) {
				if sp.Start >= sp.End {
					continue
				}
				out = append(out, Match{Line: i, Span: sp, Rule: r.name})
			}
		}
	}
	return out
}

// Apply covers every match on the page with an auto rectangle and
// returns the number of rectangles appended. Ranges without backing
// geometry are skipped silently.
func (d *Detector) Apply(page *scene.Page, pageIdx int, lines []*layout.Line, matches []Match) int {
	n := 0
	for _, m := range matches {
		if m.Line < 0 || m.Line >= len(lines) {
			continue
		}
		if page.CoverRange(pageIdx, m.Line, lines[m.Line], m.Span.Start, m.Span.End, d.cfg.RectPadding) {
			n++
		}
	}
	return n
}

func (d *Detector) newLineContext(ln *layout.Line, pageHeight float64) *lineContext {
	ctx := &lineContext{
		text:  ln.Text,
		lower: asciiLower(ln.Text),
	}
	if pageHeight > 0 {
		ctx.topRegion = ln.Top() < pageHeight*d.cfg.TopRegionFraction
	}
	ctx.isTxnRow = d.looksLikeTransactionRow(ctx.lower)
	return ctx
}

// looksLikeTransactionRow reports whether a line reads like a row of
// the statement's transaction table: it carries a date plus either a
// table-header token, a transaction keyword, or a money amount.
func (d *Detector) looksLikeTransactionRow(lower string) bool {
	if !dateRe.MatchString(lower) {
		return false
	}
	return containsKeyword(lower, d.cfg.TableHeaderTokens) ||
		containsKeyword(lower, d.cfg.TransactionKeywords) ||
		moneyRe.MatchString(lower)
}

type rule struct {
	name string
	find func(*lineContext) []Span
}

// rules returns the cascade in priority order. Each rule is gated
// independently; order matters only for the cardFound flag.
func (d *Detector) rules() []rule {
	return []rule{
		{"label_value", d.findLabelValues},
		{"postal_code", d.findPostalCodes},
		{"card_number", d.findCardNumbers},
		{"account_number", d.findAccountNumbers},
		{"national_id", d.findNationalIDs},
		{"email", d.findEmails},
		{"phone", d.findPhones},
		{"date_of_birth", d.findDOB},
		{"cardholder_name", d.findCardholderNames},
	}
}

// findLabelValues redacts the value following any known PII label and a
// colon, in any page region.
func (d *Detector) findLabelValues(ctx *lineContext) []Span {
	var spans []Span
	for _, kw := range d.cfg.LabelKeywords {
		pos := 0
		for {
			idx := indexKeyword(ctx.lower[pos:], kw)
			if idx < 0 {
				break
			}
			idx += pos
			after := idx + len(kw)
			// Skip spaces, then require the separator.
			j := after
			for j < len(ctx.text) && ctx.text[j] == ' ' {
				j++
			}
			if j < len(ctx.text) && ctx.text[j] == ':' {
				j++
				for j < len(ctx.text) && ctx.text[j] == ' ' {
					j++
				}
				if j < len(ctx.text) {
					spans = append(spans, Span{Start: j, End: len(ctx.text)})
				}
			}
			pos = after
		}
	}
	return spans
}

func (d *Detector) findPostalCodes(ctx *lineContext) []Span {
	if !ctx.topRegion {
		return nil
	}
	return allSpans(postalRe, ctx.text)
}

func (d *Detector) findCardNumbers(ctx *lineContext) []Span {
	if ctx.isTxnRow {
		return nil
	}
	if !ctx.topRegion &&
		!containsKeyword(ctx.lower, d.cfg.CardLabels) &&
		!containsKeyword(ctx.lower, d.cfg.AccountLabels) {
		return nil
	}
	var spans []Span
	spans = append(spans, allSpans(cardFullRe, ctx.text)...)
	spans = append(spans, allSpans(cardMaskedRe, ctx.text)...)
	spans = append(spans, allSpans(cardEndingRe, ctx.text)...)
	if len(spans) > 0 {
		ctx.cardFound = true
	}
	return spans
}

func (d *Detector) findAccountNumbers(ctx *lineContext) []Span {
	if ctx.isTxnRow {
		return nil
	}
	if !ctx.topRegion &&
		!containsKeyword(ctx.lower, d.cfg.CardLabels) &&
		!containsKeyword(ctx.lower, d.cfg.AccountLabels) {
		return nil
	}
	var spans []Span
	spans = append(spans, allSpans(accountNumRe, ctx.text)...)
	spans = append(spans, allSpans(ibanRe, ctx.text)...)
	spans = append(spans, allSpans(maskedAcctRe, ctx.text)...)
	return spans
}

// findNationalIDs requires an explicit label keyword on the line; bare
// digit shapes are too ambiguous on a statement.
func (d *Detector) findNationalIDs(ctx *lineContext) []Span {
	if ctx.isTxnRow || !containsKeyword(ctx.lower, d.cfg.IDLabels) {
		return nil
	}
	var spans []Span
	spans = append(spans, allSpans(ssnRe, ctx.text)...)
	spans = append(spans, allSpans(sinRe, ctx.text)...)
	spans = append(spans, allSpans(panIDRe, ctx.text)...)
	spans = append(spans, allSpans(ninoRe, ctx.text)...)
	return spans
}

// findEmails redacts every email in the top region; elsewhere an email
// is redacted only when it immediately follows an email label.
func (d *Detector) findEmails(ctx *lineContext) []Span {
	spans := allSpans(emailRe, ctx.text)
	if ctx.topRegion {
		return spans
	}
	var out []Span
	for _, sp := range spans {
		if labelPrecedes(ctx.lower, sp.Start, d.cfg.EmailLabels) {
			out = append(out, sp)
		}
	}
	return out
}

func (d *Detector) findPhones(ctx *lineContext) []Span {
	if !ctx.topRegion && !containsKeyword(ctx.lower, d.cfg.PhoneLabels) {
		return nil
	}
	return allSpans(phoneRe, ctx.text)
}

// findDOB redacts a date only when it immediately follows a DOB label.
func (d *Detector) findDOB(ctx *lineContext) []Span {
	var spans []Span
	for _, kw := range d.cfg.DOBLabels {
		idx := indexKeyword(ctx.lower, kw)
		if idx < 0 {
			continue
		}
		rest := ctx.text[idx+len(kw):]
		loc := dateRe.FindStringIndex(rest)
		if loc == nil {
			continue
		}
		// Immediately following: only separator characters between the
		// label and the date.
		if strings.TrimFunc(rest[:loc[0]], func(r rune) bool {
			return r == ' ' || r == ':' || r == '-' || r == '：'
		}) != "" {
			continue
		}
		base := idx + len(kw)
		spans = append(spans, Span{Start: base + loc[0], End: base + loc[1]})
	}
	return spans
}

// findCardholderNames sweeps a line that already produced a card match
// for runs of two or more capitalized words, skipping banking
// vocabulary.
func (d *Detector) findCardholderNames(ctx *lineContext) []Span {
	if !ctx.cardFound {
		return nil
	}
	var spans []Span
	for _, loc := range capSeqRe.FindAllStringIndex(ctx.text, -1) {
		if d.allWordsOutsideStoplist(ctx.text[loc[0]:loc[1]]) {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}
	return spans
}

func (d *Detector) allWordsOutsideStoplist(seq string) bool {
	for _, w := range strings.Fields(seq) {
		if _, ok := d.stoplist[strings.ToLower(w)]; ok {
			return false
		}
	}
	return true
}

// matchesAddressLine implements the whole-line address/name heuristic:
// top region, not a bank header, not a transaction row, and any of the
// address shapes present.
func (d *Detector) matchesAddressLine(ctx *lineContext) bool {
	if !ctx.topRegion || ctx.isTxnRow {
		return false
	}
	if containsKeyword(ctx.lower, d.cfg.BankHeaderTokens) {
		return false
	}
	switch {
	case allCapsNameRe.MatchString(ctx.text):
	case mixedNameRe.MatchString(ctx.text):
	case containsKeyword(ctx.lower, d.cfg.StreetTokens):
	case d.matchesPlaceName(ctx):
	case containsKeyword(ctx.lower, d.cfg.Countries):
	case postalRe.MatchString(ctx.text):
	case streetNumRe.MatchString(ctx.text):
	case poBoxRe.MatchString(ctx.text):
	default:
		return false
	}
	return true
}

// matchesPlaceName matches province/state names case-insensitively but
// requires two-letter abbreviations to appear uppercase in the original
// text, so prose words like "on" never trigger the heuristic.
func (d *Detector) matchesPlaceName(ctx *lineContext) bool {
	for _, kw := range d.cfg.Provinces {
		if len(kw) <= 2 {
			if indexKeyword(ctx.text, strings.ToUpper(kw)) >= 0 {
				return true
			}
			continue
		}
		if indexKeyword(ctx.lower, kw) >= 0 {
			return true
		}
	}
	return false
}

// allSpans converts every regexp match into a Span.
func allSpans(re *regexp.Regexp, text string) []Span {
	var spans []Span
	for _, loc := range re.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1]})
	}
	return spans
}

// asciiLower lowercases ASCII letters only. Unlike strings.ToLower it
// never changes byte length, so keyword offsets found in the lowered
// text line up with the original even on non-ASCII lines.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// labelPrecedes reports whether one of the labels ends just before
// offset with only separator characters in between.
func labelPrecedes(lower string, offset int, labels []string) bool {
	for _, kw := range labels {
		for pos := 0; ; {
			idx := indexKeyword(lower[pos:], kw)
			if idx < 0 {
				break
			}
			idx += pos
			end := idx + len(kw)
			if end > offset {
				break
			}
			if strings.TrimFunc(lower[end:offset], func(r rune) bool {
				return r == ' ' || r == ':' || r == '-' || r == '：'
			}) == "" {
				return true
			}
			pos = end
		}
	}
	return false
}

// containsKeyword reports whether any keyword occurs in the text at a
// token boundary.
func containsKeyword(text string, kws []string) bool {
	for _, kw := range kws {
		if indexKeyword(text, kw) >= 0 {
			return true
		}
	}
	return false
}

// indexKeyword finds kw in text such that the characters on either side
// are not letters or digits. Keywords that start or end with symbols
// (".com", "a/c") match wherever they occur. Returns -1 when absent.
func indexKeyword(text, kw string) int {
	if kw == "" {
		return -1
	}
	for from := 0; ; {
		idx := strings.Index(text[from:], kw)
		if idx < 0 {
			return -1
		}
		idx += from
		if boundaryOK(text, idx, len(kw)) {
			return idx
		}
		from = idx + 1
	}
}

func boundaryOK(text string, idx, n int) bool {
	alnum := func(b byte) bool {
		return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
	}
	first, last := text[idx], text[idx+n-1]
	if alnum(first) && idx > 0 && alnum(text[idx-1]) {
		return false
	}
	if alnum(last) && idx+n < len(text) && alnum(text[idx+n]) {
		return false
	}
	return true
}
