package domain

// Lookup carries the predicates every store read must apply.
// Soft-deleted accounts are invisible unless IncludeDeleted is set.
type Lookup struct {
	IncludeDeleted bool
}

type LookupOption func(*Lookup)

// WithDeleted is the explicit escape hatch for reads that must see soft-deleted accounts.
func WithDeleted() LookupOption {
	return func(l *Lookup) {
		l.IncludeDeleted = true
	}
}

func NewLookup(opts ...LookupOption) Lookup {
	var l Lookup
	for _, opt := range opts {
		if opt != nil {
			opt(&l)
		}
	}
	return l
}

// Visible reports whether an account passes the lookup predicates.
func (l Lookup) Visible(a *Account) bool {
	return l.IncludeDeleted || !a.Deleted
}
