package centroid

import "tractseg/internal/models"

// IsFlipped reports whether candidate runs in the opposite direction to ref.
// Both end-to-start distances must be smaller than the matching
// start-to-start and end-to-end distances; if only one is, the candidate is
// left as is.
func IsFlipped(ref, candidate models.Streamline) bool {
	if len(ref) == 0 || len(candidate) == 0 {
		return false
	}
	r0, rEnd := ref[0], ref[len(ref)-1]
	c0, cEnd := candidate[0], candidate[len(candidate)-1]

	startToEnd := r0.Distance(cEnd)
	endToEnd := rEnd.Distance(cEnd)
	endToStart := rEnd.Distance(c0)
	startToStart := r0.Distance(c0)

	return startToEnd < endToEnd && endToStart < startToStart
}

// Reorient returns the candidates oriented like ref. Each candidate is
// checked independently; flipped ones are returned reversed, the rest are copied.
func Reorient(ref models.Streamline, candidates []models.Streamline) []models.Streamline {
	out := make([]models.Streamline, len(candidates))
	for i, c := range candidates {
		if IsFlipped(ref, c) {
			out[i] = c.Reversed()
		} else {
			out[i] = c.Clone()
		}
	}
	return out
}
