package slug

import "strconv"

// Resolver hands out slugs that are unique within one namespace (business
// URLs or category URLs). It is not safe for concurrent use; a run owns one
// Resolver per namespace and feeds it records in order.
type Resolver struct {
	fallback string
	claimed  map[string]struct{}
}

// NewResolver returns an empty Resolver that substitutes fallback for names
// that slugify to the empty string.
func NewResolver(fallback string) *Resolver {
	if fallback == "" {
		fallback = FallbackBusiness
	}
	return &Resolver{fallback: fallback, claimed: make(map[string]struct{})}
}

// Reserve marks slugs as already taken, typically the urls persisted by
// previous runs. Empty values are ignored.
func (r *Resolver) Reserve(slugs ...string) {
	for _, s := range slugs {
		if s != "" {
			r.claimed[s] = struct{}{}
		}
	}
}

// Claimed reports whether s is taken.
func (r *Resolver) Claimed(s string) bool {
	_, ok := r.claimed[s]
	return ok
}

// Len returns the number of claimed slugs.
func (r *Resolver) Len() int { return len(r.claimed) }

// Resolve claims a unique slug for a business named name.
//
// Order of candidates:
//
//	base
//	base-<provider>            when providerID has alphanumerics
//	base-<provider>-2, -3, …   when providerID has alphanumerics
//	base-2, base-3, …          otherwise
func (r *Resolver) Resolve(name, providerID string) string {
	base := r.base(name)
	if !r.Claimed(base) {
		return r.claim(base)
	}
	if p := stripNonAlnum(providerID); p != "" {
		withProvider := base + "-" + p
		if !r.Claimed(withProvider) {
			return r.claim(withProvider)
		}
		return r.claim(r.suffixed(withProvider))
	}
	return r.claim(r.suffixed(base))
}

// ResolveCategory claims a unique slug for a category named name: base, then
// base-2, base-3, …
func (r *Resolver) ResolveCategory(name string) string {
	base := r.base(name)
	if !r.Claimed(base) {
		return r.claim(base)
	}
	return r.claim(r.suffixed(base))
}

func (r *Resolver) base(name string) string {
	if b := Slugify(name); b != "" {
		return b
	}
	return r.fallback
}

func (r *Resolver) suffixed(base string) string {
	for i := 2; ; i++ {
		c := base + "-" + strconv.Itoa(i)
		if !r.Claimed(c) {
			return c
		}
	}
}

func (r *Resolver) claim(s string) string {
	r.claimed[s] = struct{}{}
	return s
}
