// Package imageset computes the next ordered image list of a record.
package imageset

// Plan is the outcome of a reconciliation.
type Plan struct {
	// Next is the authoritative image list to persist.
	Next []string
	// ToDelete holds previously stored paths that are no longer referenced.
	ToDelete []string
	// Dropped holds uploaded paths cut by the cap. They are already in
	// storage and must be removed by the caller as well.
	Dropped []string
	// Changed is false when the request did not touch images.
	Changed bool
}

// Orphans returns every path the caller should remove after persisting Next.
func (p Plan) Orphans() []string {
	out := make([]string, 0, len(p.ToDelete)+len(p.Dropped))
	out = append(out, p.ToDelete...)
	return append(out, p.Dropped...)
}

// Reconcile merges the current images, the client keep list and new uploads.
// A nil keep means the client did not send one. Kept images come first in
// keep order, then uploads in upload order, truncated to max. Keep entries
// not in current are ignored since a record only owns its own files.
// max <= 0 disables the cap.
func Reconcile(current, keep, uploaded []string, max int) Plan {
	if keep == nil && len(uploaded) == 0 {
		return Plan{Next: append([]string{}, current...)}
	}

	owned := make(map[string]bool, len(current))
	for _, p := range current {
		owned[p] = true
	}

	next := make([]string, 0, len(keep)+len(uploaded))
	seen := make(map[string]bool, len(keep)+len(uploaded))
	for _, p := range keep {
		if owned[p] && !seen[p] {
			seen[p] = true
			next = append(next, p)
		}
	}

	var dropped []string
	for _, p := range uploaded {
		if seen[p] {
			continue
		}
		if max > 0 && len(next) >= max {
			dropped = append(dropped, p)
			continue
		}
		seen[p] = true
		next = append(next, p)
	}

	if max > 0 && len(next) > max {
		next = next[:max]
	}

	inNext := make(map[string]bool, len(next))
	for _, p := range next {
		inNext[p] = true
	}
	var toDelete []string
	for _, p := range current {
		if !inNext[p] {
			toDelete = append(toDelete, p)
		}
	}

	return Plan{Next: next, ToDelete: toDelete, Dropped: dropped, Changed: true}
}
