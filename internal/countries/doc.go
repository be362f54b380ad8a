// Package countries resolves free-text country identifiers to ISO-3166 alpha-3
// codes.
//
// A single Resolver is built from the embedded country table plus optional
// overrides from configuration. Lookup goes exact table, then overrides, then
// (when enabled) a word-boundary substring search over full country names.
// Substring hits nested inside a longer hit are discarded; if more than one
// country remains the identifier is reported as ambiguous and left unresolved.
//
// Example usage:
//
//	r, err := countries.NewResolver(countries.WithOverrides(cfg.Countries.Overrides))
//	res := r.Resolve("Côte d'Ivoire") // res.Code == "CIV"
package countries
