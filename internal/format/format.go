// Package format renders prices and counts the way the storefront shows them.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is the locale used for grouping when none is configured.
var DefaultLocale = language.Indonesian

// Amounts at or above this magnitude lose precision as float64.
var maxFloatExact = decimal.New(1, 15)

// Formatter groups numbers for a single locale. It is safe for concurrent use.
type Formatter struct {
	tag language.Tag
}

// New returns a Formatter for the given BCP 47 tag. An unparsable tag falls
// back to DefaultLocale.
func New(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = DefaultLocale
	}
	return &Formatter{tag: tag}
}

// Number groups thousands, keeping at most three fraction digits
// (50000 => "50.000" for id-ID).
func (f *Formatter) Number(d decimal.Decimal) string {
	p := message.NewPrinter(f.tag)
	switch {
	case d.IsInteger() && d.BigInt().IsInt64():
		return p.Sprint(number.Decimal(d.IntPart()))
	case d.Abs().LessThan(maxFloatExact):
		return p.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(3)))
	default:
		return f.large(p, d)
	}
}

// large groups the integer digits by hand; x/text only takes machine-sized
// numbers. The locale still supplies both separators.
func (f *Formatter) large(p *message.Printer, d decimal.Decimal) string {
	abs := d.Abs().Round(3)
	whole := abs.Truncate(0)
	frac := abs.Sub(whole)

	digits := whole.String()
	grouped := strings.TrimPrefix(p.Sprint(number.Decimal(1000000)), "1")
	sep := grouped[:max(strings.IndexByte(grouped, '0'), 0)]

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteString(sep)
		b.WriteString(digits[i : i+3])
	}
	if !frac.IsZero() {
		// "0,5" for id-ID; keep the separator and digits.
		s := p.Sprint(number.Decimal(frac.InexactFloat64(), number.MaxFractionDigits(3)))
		b.WriteString(strings.TrimPrefix(s, "0"))
	}
	return b.String()
}

// Rupiah prefixes the grouped amount with the currency symbol: "Rp 50.000".
func (f *Formatter) Rupiah(d decimal.Decimal) string {
	return "Rp " + f.Number(d)
}
