// Package validate classifies and syntax-checks the seed objects given
// on the command line — AS numbers, AS-set/route-set macros, literal
// prefixes and prefix ranges, and the EXCEPT stop-list switch — before
// any IRRd connection is opened (spec.md §4.5 "Inputs", §7
// Input-syntax).
//
// Classification itself is sequential (the EXCEPT switch and FIFO
// ordering of macro seeds both depend on token order), but the actual
// parsing of each literal-prefix and AS-number token is independent,
// CPU-bound work with no shared state. irrgen dispatches that parsing
// across a bounded worker pool (github.com/Emeline-1/pool, the same
// library the teacher uses to parse batches of input files
// concurrently before its own CPU-bound analysis phase) and only then
// re-assembles the validated seeds in their original order — entirely
// before internal/expander ever constructs a connection, so it never
// competes with the single IRRd socket the core's concurrency model
// requires.
package validate

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	pool "github.com/Emeline-1/pool"
	"github.com/irrquery/irrgen/internal/radixtree"
)

// Kind classifies a seed token.
type Kind int

const (
	KindASN Kind = iota
	KindMacro
	KindPrefix
	KindPrefixRange
)

// Seed is one fully classified, syntax-checked seed object.
type Seed struct {
	Kind Kind
	Text string // original token, e.g. "RIPE::AS-FOO" or "AS64500"

	// Populated when Kind == KindMacro.
	Source string // "" when no SOURCE:: prefix was given
	Object string // the AS-/RS- name without the SOURCE:: prefix

	// Populated when Kind == KindASN.
	ASN uint32

	// Populated when Kind == KindPrefix or KindPrefixRange.
	Prefix         radixtree.Prefix
	RangeLow, RangeHi int

	// Stop reports whether this seed appeared after an EXCEPT token —
	// it belongs on the stoplist rather than being expanded.
	Stop bool
}

const (
	specialASNLow  = 64496
	specialASNHigh = 65551
	specialASN32   = 4200000000
)

// IsSpecialASN reports whether asn falls in a documented reserved/
// private range (spec.md §8): [64496, 65551] or >= 4200000000.
func IsSpecialASN(asn uint32) bool {
	return (asn >= specialASNLow && asn <= specialASNHigh) || asn >= specialASN32
}

// Classify walks tokens in order, building the FIFO-ordered seed list.
// family and maxLen bound literal prefix parsing; expandSpecialASN
// disables the reserved-ASN rejection of spec.md §8.
func Classify(tokens []string, family radixtree.Family, maxLen int, expandSpecialASN bool) ([]Seed, error) {
	raw := make([]Seed, len(tokens))
	stop := false

	for i, tok := range tokens {
		if strings.EqualFold(tok, "EXCEPT") {
			stop = true
			raw[i] = Seed{Kind: -1} // marker, dropped below
			continue
		}
		raw[i] = classifyOne(tok)
		raw[i].Stop = stop
	}

	// Concurrent syntax validation of ASN and prefix tokens: each
	// token's index is independent, CPU-bound work, so it is handed to
	// a bounded pool rather than validated one at a time.
	var mu sync.Mutex
	var errs []error
	items := make([]string, 0, len(raw))
	for i := range raw {
		switch raw[i].Kind {
		case KindASN, KindPrefix, KindPrefixRange:
			items = append(items, strconv.Itoa(i))
		}
	}

	validateOne := func(key string) {
		i, err := strconv.Atoi(key)
		if err != nil {
			return
		}
		if err := finishValidate(&raw[i], family, maxLen, expandSpecialASN); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	if len(items) > 0 {
		workers := len(items)
		if workers > 16 {
			workers = 16
		}
		pool.Launch_pool(workers, items, validateOne)
	}

	if len(errs) > 0 {
		return nil, errs[0]
	}

	out := make([]Seed, 0, len(raw))
	for _, s := range raw {
		if s.Kind == -1 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func classifyOne(tok string) Seed {
	source, object := splitSource(tok)

	switch {
	case looksLikeASN(object):
		return Seed{Kind: KindASN, Text: tok, Source: source, Object: object}
	case strings.ContainsAny(object, "-:") && !strings.Contains(object, "/"):
		return Seed{Kind: KindMacro, Text: tok, Source: source, Object: object}
	case strings.Contains(object, "^"):
		return Seed{Kind: KindPrefixRange, Text: tok, Source: source, Object: object}
	default:
		return Seed{Kind: KindPrefix, Text: tok, Source: source, Object: object}
	}
}

func splitSource(tok string) (source, object string) {
	// An IPv6 prefix ("2001:db8::/32") also contains "::"; SOURCE:: only
	// ever qualifies an object name, which never contains '/'.
	if idx := strings.Index(tok, "::"); idx >= 0 && !strings.Contains(tok, "/") {
		return tok[:idx], tok[idx+2:]
	}
	return "", tok
}

func looksLikeASN(s string) bool {
	if len(s) < 3 || !strings.EqualFold(s[:2], "AS") {
		return false
	}
	for _, r := range s[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func finishValidate(s *Seed, family radixtree.Family, maxLen int, expandSpecialASN bool) error {
	switch s.Kind {
	case KindASN:
		n, err := strconv.ParseUint(s.Object[2:], 10, 32)
		if err != nil {
			return fmt.Errorf("validate: invalid AS number %q: %w", s.Text, err)
		}
		asn := uint32(n)
		if !expandSpecialASN && IsSpecialASN(asn) {
			return fmt.Errorf("validate: %q is a reserved/private ASN (pass -expand-special-asn to allow)", s.Text)
		}
		s.ASN = asn
		return nil

	case KindPrefix:
		p, err := netip.ParsePrefix(s.Object)
		if err != nil {
			return fmt.Errorf("validate: invalid prefix %q: %w", s.Text, err)
		}
		rp, err := radixtree.NewPrefix(p)
		if err != nil {
			return fmt.Errorf("validate: %q: %w", s.Text, err)
		}
		if rp.Family() != family {
			return fmt.Errorf("validate: %q is not %s", s.Text, family)
		}
		if rp.Masklen() > maxLen {
			return fmt.Errorf("validate: %q exceeds maximum length %d", s.Text, maxLen)
		}
		s.Prefix = rp
		return nil

	case KindPrefixRange:
		return finishValidateRange(s, family, maxLen)
	}
	return nil
}

func finishValidateRange(s *Seed, family radixtree.Family, maxLen int) error {
	idx := strings.Index(s.Object, "^")
	base, rangeExpr := s.Object[:idx], s.Object[idx+1:]

	p, err := netip.ParsePrefix(base)
	if err != nil {
		return fmt.Errorf("validate: invalid prefix %q: %w", s.Text, err)
	}
	rp, err := radixtree.NewPrefix(p)
	if err != nil {
		return fmt.Errorf("validate: %q: %w", s.Text, err)
	}
	if rp.Family() != family {
		return fmt.Errorf("validate: %q is not %s", s.Text, family)
	}

	low, high, err := parseRange(rangeExpr, rp.Masklen(), maxLen)
	if err != nil {
		return fmt.Errorf("validate: %q: %w", s.Text, err)
	}

	s.Prefix = rp
	s.RangeLow, s.RangeHi = low, high
	return nil
}

// parseRange parses the "low-high" or "-high" syntax of P^low-high /
// P^-high, enforcing 1 <= low <= high <= maxlen and masklen <= low
// (spec.md §4.1 insert-range).
func parseRange(expr string, masklen, maxLen int) (low, high int, err error) {
	if strings.HasPrefix(expr, "-") {
		high, err = strconv.Atoi(expr[1:])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid length range %q: %w", expr, err)
		}
		low = masklen
	} else {
		parts := strings.SplitN(expr, "-", 2)
		if len(parts) != 2 {
			return 0, 0, fmt.Errorf("invalid length range %q", expr)
		}
		low, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid length range %q: %w", expr, err)
		}
		high, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid length range %q: %w", expr, err)
		}
	}
	if low < 1 || low > high || high > maxLen || masklen > low {
		return 0, 0, fmt.Errorf("length range %d-%d invalid for /%d (max %d)", low, high, masklen, maxLen)
	}
	return low, high, nil
}
