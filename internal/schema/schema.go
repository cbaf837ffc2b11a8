package schema

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidSegment indicates a raw value that does not satisfy its segment rule.
var ErrInvalidSegment = errors.New("invalid segment value")

// ErrUnknownSegment indicates a segment name outside the recognized set.
var ErrUnknownSegment = errors.New("unknown segment")

// Name identifies one segment of a document code.
type Name string

const (
	SegMachine  Name = "MMM"
	SegGroup    Name = "GGGG"
	SegVariant  Name = "VVV"
	SegSequence Name = "SEQ"
	SegVersion  Name = "VNUM"
)

// Charset restricts the characters a segment may contain.
type Charset string

const (
	CharsetNum   Charset = "NUM"
	CharsetAlpha Charset = "ALPHA"
	CharsetAlnum Charset = "ALNUM"
)

// CaseMode controls case normalization for a segment.
type CaseMode string

const (
	CaseUpper CaseMode = "UPPER"
	CaseAsIs  CaseMode = "AS_IS"
)

// Rule describes the format of one segment.
type Rule struct {
	Enabled bool
	Length  int
	Charset Charset
	Case    CaseMode
}

// Validate checks that the rule itself is well formed.
func (r Rule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Length, validation.Required, validation.Min(1), validation.Max(8)),
		validation.Field(&r.Charset, validation.Required, validation.In(CharsetNum, CharsetAlpha, CharsetAlnum)),
		validation.Field(&r.Case, validation.Required, validation.In(CaseUpper, CaseAsIs)),
	)
}

// Schema is the closed set of segment rules for a workspace. Segments are
// additive-only: codes issued before a segment was enabled remain valid.
type Schema struct {
	rules map[Name]Rule
}

// Default returns the built-in schema: 3-char alpha machine, 4-char group,
// 3-char alnum variant, 4-digit sequence and version number.
func Default() Schema {
	return Schema{rules: map[Name]Rule{
		SegMachine:  {Enabled: true, Length: 3, Charset: CharsetAlpha, Case: CaseUpper},
		SegGroup:    {Enabled: true, Length: 4, Charset: CharsetAlnum, Case: CaseUpper},
		SegVariant:  {Enabled: true, Length: 3, Charset: CharsetAlnum, Case: CaseUpper},
		SegSequence: {Enabled: true, Length: 4, Charset: CharsetNum, Case: CaseUpper},
		SegVersion:  {Enabled: true, Length: 4, Charset: CharsetNum, Case: CaseUpper},
	}}
}

// New builds a schema from explicit rules. Unknown segment names and
// malformed rules are rejected here, at load time, never at use time.
func New(rules map[Name]Rule) (Schema, error) {
	s := Default()
	for name, rule := range rules {
		if _, ok := s.rules[name]; !ok {
			return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSegment, name)
		}
		if err := rule.Validate(); err != nil {
			return Schema{}, fmt.Errorf("segment %s: %w", name, err)
		}
		s.rules[name] = rule
	}
	return s, nil
}

// Rule returns the rule for a segment name.
func (s Schema) Rule(name Name) (Rule, bool) {
	r, ok := s.rules[name]
	return r, ok
}

// Width returns the fixed length of a segment.
func (s Schema) Width(name Name) int {
	return s.rules[name].Length
}

// MaxValue returns the largest integer representable in a numeric segment,
// e.g. 9999 for a 4-digit sequence.
func (s Schema) MaxValue(name Name) int {
	max := 1
	for i := 0; i < s.rules[name].Length; i++ {
		max *= 10
	}
	return max - 1
}

// Validate checks a raw value against a segment rule and returns the
// normalized value. Length or charset mismatches fail with ErrInvalidSegment;
// no silent padding or truncation is performed.
func (s Schema) Validate(name Name, raw string) (string, error) {
	rule, ok := s.rules[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSegment, name)
	}
	if !rule.Enabled {
		return "", fmt.Errorf("%w: segment %s is disabled", ErrInvalidSegment, name)
	}

	v := strings.TrimSpace(raw)
	if rule.Case == CaseUpper {
		v = strings.ToUpper(v)
	}
	if len(v) != rule.Length {
		return "", fmt.Errorf("%w: %s must be exactly %d characters, got %q", ErrInvalidSegment, name, rule.Length, raw)
	}
	for _, ch := range v {
		if !rule.Charset.allows(ch) {
			return "", fmt.Errorf("%w: %s rejects character %q (charset %s)", ErrInvalidSegment, name, ch, rule.Charset)
		}
	}
	return v, nil
}

func (c Charset) allows(ch rune) bool {
	digit := ch >= '0' && ch <= '9'
	alpha := ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
	switch c {
	case CharsetNum:
		return digit
	case CharsetAlpha:
		return alpha
	default:
		return digit || alpha
	}
}
