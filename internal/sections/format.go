package sections

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the date format printed on DMV forms.
const DateLayout = "01/02/2006"

var (
	ErrPhone   = errors.New("phone number must have 10 digits")
	ErrDate    = errors.New("date must be MM/DD/YYYY")
	ErrVIN     = errors.New("invalid vehicle identification number")
	ErrState   = errors.New("unknown state abbreviation")
	ErrZIP     = errors.New("zip code must be 5 or 9 digits")
	ErrYear    = errors.New("year must be four digits")
	ErrNumeric = errors.New("must be a number")
)

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders partial or complete input as "(555) 123-4567". A
// leading country code 1 on 11 digits is dropped; extra digits are cut.
func FormatPhone(s string) string {
	d := digits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) > 10 {
		d = d[:10]
	}
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 3:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:3] + ") " + d[3:]
	default:
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
	}
}

// ValidatePhone accepts any formatting with exactly ten digits.
func ValidatePhone(s string) error {
	d := digits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ErrPhone
	}
	return nil
}

// FormatDate inserts slashes as digits are typed: "0102" -> "01/02".
func FormatDate(s string) string {
	d := digits(s)
	if len(d) > 8 {
		d = d[:8]
	}
	switch {
	case len(d) <= 2:
		return d
	case len(d) <= 4:
		return d[:2] + "/" + d[2:]
	default:
		return d[:2] + "/" + d[2:4] + "/" + d[4:]
	}
}

// ValidateDate requires a real calendar date in MM/DD/YYYY form.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(s)); err != nil {
		return ErrDate
	}
	return nil
}

var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// ValidateVIN accepts a modern 17-character VIN (no I, O or Q), or a
// 5 to 16 character alphanumeric identifier for pre-1981 vehicles and
// vessel hull ids.
func ValidateVIN(s string) error {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case len(v) == 17:
		if !vinPattern.MatchString(v) {
			return fmt.Errorf("%w: %q", ErrVIN, s)
		}
		return nil
	case len(v) >= 5 && len(v) < 17:
		for _, r := range v {
			if !unicode.IsDigit(r) && (r < 'A' || r > 'Z') {
				return fmt.Errorf("%w: %q", ErrVIN, s)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: length %d", ErrVIN, len(v))
}

var states = map[string]bool{}

func init() {
	for _, s := range strings.Fields(`AL AK AZ AR CA CO CT DE DC FL GA HI ID IL IN IA KS KY LA ME MD MA MI
		MN MS MO MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC SD TN TX UT VT VA WA WV WI WY
		AS GU MP PR VI`) {
		states[s] = true
	}
}

// NormalizeState upper-cases and trims a state abbreviation.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateState accepts US state and territory abbreviations in any case.
func ValidateState(s string) error {
	if !states[NormalizeState(s)] {
		return fmt.Errorf("%w: %q", ErrState, s)
	}
	return nil
}

var zipPattern = regexp.MustCompile(`^\d{5}(-?\d{4})?$`)

// ValidateZIP accepts 12345, 12345-6789 and 123456789.
func ValidateZIP(s string) error {
	if !zipPattern.MatchString(strings.TrimSpace(s)) {
		return ErrZIP
	}
	return nil
}

// ValidateYear accepts a four digit model year.
func ValidateYear(s string) error {
	v := strings.TrimSpace(s)
	if len(v) != 4 || digits(v) != v {
		return ErrYear
	}
	return nil
}

// ValidateNumeric accepts digits with an optional decimal point and commas,
// as typed into price and odometer boxes.
func ValidateNumeric(s string) error {
	v := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v = strings.TrimPrefix(v, "$")
	whole := strings.Replace(v, ".", "", 1)
	if whole == "" || digits(whole) != whole {
		return ErrNumeric
	}
	return nil
}
