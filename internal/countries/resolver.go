package countries

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sovpanel/pkg/contracts/domain"
)

// Method records how an identifier was resolved
type Method string

const (
	MethodExact      Method = "exact"
	MethodOverride   Method = "override"
	MethodSubstring  Method = "substring"
	MethodAmbiguous  Method = "ambiguous"
	MethodUnresolved Method = "unresolved"
)

// Resolution is the outcome of resolving one raw identifier. Raw is always
// kept so unresolved and ambiguous inputs can be reported verbatim.
type Resolution struct {
	Raw        string
	Code       domain.CountryCode
	Method     Method
	Candidates []domain.CountryCode
}

// Resolved reports whether a canonical code was found
func (r Resolution) Resolved() bool {
	return r.Code != domain.Unresolved
}

// minSubstringKey keeps codes and short aliases out of substring matching
const minSubstringKey = 4

type nameKey struct {
	key  string
	code domain.CountryCode
}

// Resolver maps raw country identifiers to ISO-3166 alpha-3 codes. It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	exact     map[string]domain.CountryCode
	overrides map[string]domain.CountryCode
	names     []nameKey
	byCode    map[domain.CountryCode]Country
	substring bool
}

// Option configures a Resolver
type Option func(*resolverOptions)

type resolverOptions struct {
	overrides map[string]string
	substring bool
	table     []Country
}

// WithOverrides adds dataset-specific aliases, e.g. file stems or ticker
// prefixes. Keys are normalized like every other identifier.
func WithOverrides(overrides map[string]string) Option {
	return func(o *resolverOptions) {
		o.overrides = overrides
	}
}

// WithSubstringFallback enables matching full country names embedded in
// longer identifiers when exact and override lookups fail.
func WithSubstringFallback(enabled bool) Option {
	return func(o *resolverOptions) {
		o.substring = enabled
	}
}

// WithTable replaces the built-in country table
func WithTable(table []Country) Option {
	return func(o *resolverOptions) {
		o.table = table
	}
}

// NewResolver builds the lookup tables. It fails when two entries claim the
// same normalized key for different codes.
func NewResolver(opts ...Option) (*Resolver, error) {
	o := resolverOptions{table: builtin}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resolver{
		exact:     make(map[string]domain.CountryCode),
		overrides: make(map[string]domain.CountryCode),
		byCode:    make(map[domain.CountryCode]Country, len(o.table)),
		substring: o.substring,
	}

	nameSeen := make(map[string]bool)
	for _, c := range o.table {
		code := domain.CountryCode(c.Alpha3)
		if !code.IsResolved() {
			return nil, fmt.Errorf("country table: invalid alpha-3 code %q", c.Alpha3)
		}
		if _, dup := r.byCode[code]; dup {
			return nil, fmt.Errorf("country table: %s listed twice", code)
		}
		r.byCode[code] = c

		keys := []string{c.Alpha3, c.Alpha2}
		if c.Numeric != "" {
			keys = append(keys, c.Numeric)
			if n, err := strconv.Atoi(c.Numeric); err == nil {
				keys = append(keys, strconv.Itoa(n))
			}
		}
		names := append([]string{c.Name}, c.Aliases...)
		keys = append(keys, names...)

		for _, k := range keys {
			if err := addKey(r.exact, Normalize(k), code, k); err != nil {
				return nil, fmt.Errorf("country table: %w", err)
			}
		}
		for _, n := range names {
			key := Normalize(n)
			if len(key) < minSubstringKey || nameSeen[key] {
				continue
			}
			nameSeen[key] = true
			r.names = append(r.names, nameKey{key: key, code: code})
		}
	}

	for raw, target := range o.overrides {
		code := domain.CountryCode(strings.ToUpper(strings.TrimSpace(target)))
		if !code.IsResolved() {
			return nil, fmt.Errorf("override %q: target %q is not an alpha-3 code", raw, target)
		}
		key := Normalize(raw)
		if key == "" {
			return nil, fmt.Errorf("override %q normalizes to an empty key", raw)
		}
		if existing, ok := r.exact[key]; ok && existing != code {
			return nil, fmt.Errorf("override %q -> %s conflicts with table entry %s", raw, code, existing)
		}
		if err := addKey(r.overrides, key, code, raw); err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
	}

	// longest names first so containment checks see the enclosing match early
	sort.Slice(r.names, func(i, j int) bool {
		if len(r.names[i].key) != len(r.names[j].key) {
			return len(r.names[i].key) > len(r.names[j].key)
		}
		return r.names[i].key < r.names[j].key
	})

	return r, nil
}

func addKey(m map[string]domain.CountryCode, key string, code domain.CountryCode, raw string) error {
	if key == "" {
		return nil
	}
	if existing, ok := m[key]; ok && existing != code {
		return fmt.Errorf("key %q (from %q) maps to both %s and %s", key, raw, existing, code)
	}
	m[key] = code
	return nil
}

// Resolve maps raw to a canonical code: exact table first, then overrides,
// then the optional substring fallback. Ambiguous substring matches are
// reported as unresolved with their candidates.
func (r *Resolver) Resolve(raw string) Resolution {
	res := Resolution{Raw: raw, Method: MethodUnresolved}
	key := Normalize(raw)
	if key == "" {
		return res
	}

	if code, ok := r.exact[key]; ok {
		res.Code, res.Method = code, MethodExact
		return res
	}
	if code, ok := r.overrides[key]; ok {
		res.Code, res.Method = code, MethodOverride
		return res
	}
	if !r.substring {
		return res
	}

	candidates := r.substringMatches(key)
	switch len(candidates) {
	case 0:
	case 1:
		res.Code, res.Method = candidates[0], MethodSubstring
	default:
		res.Method = MethodAmbiguous
		res.Candidates = candidates
	}
	return res
}

type span struct {
	start, end int
	code       domain.CountryCode
}

// substringMatches finds every table name occurring on word boundaries inside
// key, discards matches nested in a longer match, and returns the distinct
// codes left, sorted.
func (r *Resolver) substringMatches(key string) []domain.CountryCode {
	padded := " " + key + " "
	var spans []span
	for _, n := range r.names {
		needle := " " + n.key + " "
		for off := 0; ; {
			i := strings.Index(padded[off:], needle)
			if i < 0 {
				break
			}
			start := off + i
			spans = append(spans, span{start: start, end: start + len(needle) - 1, code: n.code})
			off = start + 1
		}
	}

	codes := make(map[domain.CountryCode]struct{})
	for i, s := range spans {
		nested := false
		for j, o := range spans {
			if i == j {
				continue
			}
			if o.start <= s.start && s.end <= o.end && (o.end-o.start) > (s.end-s.start) {
				nested = true
				break
			}
		}
		if !nested {
			codes[s.code] = struct{}{}
		}
	}

	out := make([]domain.CountryCode, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the table entry for a canonical code
func (r *Resolver) Lookup(code domain.CountryCode) (Country, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// Codes returns every canonical code in the table, sorted
func (r *Resolver) Codes() []domain.CountryCode {
	out := make([]domain.CountryCode, 0, len(r.byCode))
	for c := range r.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultResolver     *Resolver
	defaultResolverErr  error
	defaultResolverOnce sync.Once
)

// Default returns the process-wide resolver over the built-in table with no
// overrides and substring fallback disabled. It panics if the built-in table
// is inconsistent, which the package tests rule out.
func Default() *Resolver {
	defaultResolverOnce.Do(func() {
		defaultResolver, defaultResolverErr = NewResolver()
	})
	if defaultResolverErr != nil {
		panic(fmt.Sprintf("countries: built-in table is inconsistent: %v", defaultResolverErr))
	}
	return defaultResolver
}
