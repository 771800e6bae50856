// Package classcode maps class names of the current and legacy naming schemes
// to canonical names and departments.
//
// A current class name is a two digit graduation year, a department letter and
// a seat letter ("27Gw"). Classes graduating before the table's cutoff year
// were named with the year and a single letter ("24a"); those are translated
// through the legacy substitution table.
package classcode

import "strings"

// Resolution is the outcome of resolving one class name.
type Resolution struct {
	Input      string
	Canonical  string
	Year       int
	Department Department
	Legacy     bool
}

// OK reports whether a department was found.
func (r Resolution) OK() bool {
	return r.Department != NoDepartment
}

// Resolver is a pure lookup over a Table.
type Resolver struct {
	table Table
}

// NewResolver wraps the given table.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve classifies raw. Names that match no rule come back with
// NoDepartment and the trimmed input as canonical name.
func (r *Resolver) Resolve(raw string) Resolution {
	name := strings.TrimSpace(raw)
	res := Resolution{Input: raw, Canonical: name}
	if len(name) < 3 || !isDigits(name[:2]) {
		return res
	}
	res.Year = int(name[0]-'0')*10 + int(name[1]-'0')

	if res.Year < r.table.CutoffYear && len(name) == 3 {
		return r.resolveLegacy(res, name)
	}
	if len(name) == 4 {
		return r.resolveCurrent(res, name)
	}
	return res
}

func (r *Resolver) resolveLegacy(res Resolution, name string) Resolution {
	entry, ok := r.table.Legacy.Overrides[name]
	if !ok {
		entry, ok = r.table.Legacy.Letters[name[2:]]
	}
	if !ok {
		return res
	}
	seat := entry.Seat
	if seat == "" {
		seat = name[2:]
	}
	res.Legacy = true
	res.Department = entry.Department
	res.Canonical = name[:2] + entry.Code + seat
	return res
}

func (r *Resolver) resolveCurrent(res Resolution, name string) Resolution {
	code, seat := name[2:3], name[3:4]
	if !isLetter(seat) {
		return res
	}
	for _, rule := range r.table.Current[code] {
		if seat >= rule.From && seat <= rule.To {
			res.Department = rule.Department
			return res
		}
	}
	return res
}

// Department is a shorthand for Resolve(raw).Department.
func (r *Resolver) Department(raw string) Department {
	return r.Resolve(raw).Department
}

// Canonical returns the current-scheme name for raw.
func (r *Resolver) Canonical(raw string) string {
	return r.Resolve(raw).Canonical
}

// Aliases lists the distinct names under which raw may appear.
func (r *Resolver) Aliases(raw string) []string {
	name := strings.TrimSpace(raw)
	canonical := r.Canonical(name)
	if canonical == name {
		return []string{name}
	}
	return []string{name, canonical}
}

// Equivalent reports whether a and b denote the same class.
func (r *Resolver) Equivalent(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	return r.Canonical(a) == r.Canonical(b)
}
