package format

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([" + regexp.QuoteMeta(mdV2Specials) + "])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// HTML escapes text for Telegram's HTML parse mode.
func HTML(text string) string {
	return html.EscapeString(text)
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return "…"
	}
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}

// Price renders an amount in minor units (cents) as "12.50 EUR".
func Price(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	s := fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	if currency != "" {
		s += " " + currency
	}
	return s
}

// ErrBadPrice is returned by ParsePrice for input that is not a positive amount.
var ErrBadPrice = errors.New("format: bad price")

// ParsePrice reads "25", "19.9", "19.99" or "19,99" into minor units.
func ParsePrice(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 || (hasFrac && frac == "") {
		return 0, ErrBadPrice
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseUint(whole, 10, 40)
	if err != nil {
		return 0, ErrBadPrice
	}
	cents, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, ErrBadPrice
	}
	minor := int64(units)*100 + int64(cents)
	if minor <= 0 {
		return 0, ErrBadPrice
	}
	return minor, nil
}
