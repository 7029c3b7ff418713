// Package filter implements the customer filter engine: a conjunction of
// state, status, registration-date, product-interest, and radius predicates
// applied over the normalized customer set.
package filter

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/domain/geo"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	geotypes "github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Criteria is the full set of filter inputs.  Empty criteria match everything.
type Criteria struct {
	// States restricts matches to customers in any of the listed states
	// (exact match, case-sensitive, as states are stored normalized).
	States []string

	// Statuses restricts matches to customers with any of the listed statuses.
	Statuses []string

	// DateFrom / DateTo restrict matches by registration date.  Accepted
	// formats are "yyyy" and "mm-dd-yyyy"; anything else is ignored as if
	// the bound were absent.  Reversed bounds are swapped.
	DateFrom string
	DateTo   string

	// Products restricts matches to customers interested in any of the listed
	// products (case-insensitive).
	Products []string

	// RadiusCenter / RadiusMeters restrict matches to customers within the
	// given great-circle distance of the center.  A nil center disables the
	// radius predicate.
	RadiusCenter *geotypes.Point
	RadiusMeters float64
}

// IsZero reports whether no predicate is active.
func (c Criteria) IsZero() bool {
	return len(c.States) == 0 && len(c.Statuses) == 0 &&
		c.DateFrom == "" && c.DateTo == "" &&
		len(c.Products) == 0 && c.RadiusCenter == nil
}

var (
	yearOnlyRe = regexp.MustCompile(`^\d{4}$`)
	mdyRe      = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
)

// parseBound parses a date-filter bound.  Only "yyyy" and "mm-dd-yyyy" are
// accepted; the zero time and false are returned for anything else, meaning
// that bound is not applied.  Start bounds resolve to the beginning of the
// period, end bounds to its last instant.
func parseBound(s string, isEnd bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if yearOnlyRe.MatchString(s) {
		y := atoi(s)
		if isEnd {
			return time.Date(y, time.December, 31, 23, 59, 59, 999e6, time.UTC), true
		}
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}

	if m := mdyRe.FindStringSubmatch(s); m != nil {
		mm := clampInt(atoi(m[1]), 1, 12)
		dd := clampInt(atoi(m[2]), 1, 31)
		yy := atoi(m[3])
		if isEnd {
			return time.Date(yy, time.Month(mm), dd, 23, 59, 59, 999e6, time.UTC), true
		}
		return time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dateRange holds resolved date bounds.  Absent bounds are open.
type dateRange struct {
	from, to       time.Time
	hasFrom, hasTo bool
}

// resolveDates parses both bounds and swaps them if reversed.
func resolveDates(c Criteria) dateRange {
	r := dateRange{}
	r.from, r.hasFrom = parseBound(c.DateFrom, false)
	r.to, r.hasTo = parseBound(c.DateTo, true)
	if r.hasFrom && r.hasTo && r.from.After(r.to) {
		r.from, r.to = r.to, r.from
	}
	return r
}

// Engine applies Criteria over customer sets.
type Engine struct{}

// NewEngine returns a filter Engine.
func NewEngine() *Engine { return &Engine{} }

// Apply returns the customers matching every active predicate, in input
// order.  The returned slice is always non-nil.
func (e *Engine) Apply(customers []customer.Customer, c Criteria) []customer.Customer {
	out := make([]customer.Customer, 0, len(customers))
	if len(customers) == 0 {
		return out
	}

	dates := resolveDates(c)
	statusSet := toSet(c.Statuses, false)
	productSet := toSet(c.Products, true)
	stateSet := toSet(c.States, false)

	for _, cust := range customers {
		if e.matches(cust, c, dates, stateSet, statusSet, productSet) {
			out = append(out, cust)
		}
	}
	return out
}

// Count returns the number of customers matching the criteria.
func (e *Engine) Count(customers []customer.Customer, c Criteria) int {
	return len(e.Apply(customers, c))
}

func (e *Engine) matches(cust customer.Customer, c Criteria, dates dateRange,
	stateSet, statusSet, productSet map[string]struct{}) bool {

	if len(stateSet) > 0 {
		if _, ok := stateSet[cust.State]; !ok {
			return false
		}
	}

	if len(statusSet) > 0 {
		if _, ok := statusSet[cust.Status]; !ok {
			return false
		}
	}

	if dates.hasFrom || dates.hasTo {
		ts, err := time.ParseInLocation("2006-01-02", cust.RegisteredAt, time.UTC)
		if err != nil {
			// Unparseable registration dates fail closed when a date filter
			// is active.
			return false
		}
		if dates.hasFrom && ts.Before(dates.from) {
			return false
		}
		if dates.hasTo && ts.After(dates.to) {
			return false
		}
	}

	if len(productSet) > 0 {
		hasAny := false
		for _, p := range product.NormalizeList(cust.Products) {
			if _, ok := productSet[strings.ToLower(p)]; ok {
				hasAny = true
				break
			}
		}
		if !hasAny {
			return false
		}
	}

	if c.RadiusCenter != nil {
		loc, ok := cust.Location()
		if !ok {
			return false
		}
		if !geo.WithinRadius(*c.RadiusCenter, loc, c.RadiusMeters) {
			return false
		}
	}

	return true
}

func toSet(values []string, lower bool) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if lower {
			v = strings.ToLower(v)
		}
		set[v] = struct{}{}
	}
	return set
}

// StateOptions returns the distinct states present in the customer set,
// sorted ascending.
func StateOptions(customers []customer.Customer) []string {
	seen := make(map[string]struct{}, len(customers))
	out := make([]string, 0, len(customers))
	for _, c := range customers {
		if _, ok := seen[c.State]; ok {
			continue
		}
		seen[c.State] = struct{}{}
		out = append(out, c.State)
	}
	sort.Strings(out)
	return out
}

// ProductOptions returns the catalog product names available for filtering,
// in catalog order.
func ProductOptions(classifier *product.Classifier) []string {
	return classifier.Names()
}
