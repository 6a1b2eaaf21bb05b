package diag

// Report aggregates the diagnostics of one extraction run in the order they
// were raised. A Report is owned by a single run and is not safe for
// concurrent mutation.
type Report struct {
	items []Diagnostic
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add appends diagnostics.
func (r *Report) Add(ds ...Diagnostic) {
	r.items = append(r.items, ds...)
}

// All returns every diagnostic in the order raised.
func (r *Report) All() []Diagnostic {
	out := make([]Diagnostic, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of diagnostics.
func (r *Report) Len() int {
	return len(r.items)
}

// Fatal returns the first fatal diagnostic.
func (r *Report) Fatal() (Diagnostic, bool) {
	for _, d := range r.items {
		if d.Severity() == Fatal {
			return d, true
		}
	}
	return Diagnostic{}, false
}

// HasFatal reports whether any diagnostic is fatal.
func (r *Report) HasFatal() bool {
	_, ok := r.Fatal()
	return ok
}

// Advisories returns the advisory diagnostics in order.
func (r *Report) Advisories() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.items {
		if d.Severity() == Advisory {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many diagnostics have the given kind.
func (r *Report) Count(kind Kind) int {
	n := 0
	for _, d := range r.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
