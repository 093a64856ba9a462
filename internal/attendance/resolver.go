package attendance

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Population is a lazily produced stream of enrolled identities. Next
// returns nil when the stream is exhausted. Streaming keeps the resolver
// independent of how candidates are fetched (full directory scan, HNSW
// pre-selection) and lets tests count how far a scan actually went.
type Population interface {
	Next(ctx context.Context) (*Identity, error)
}

// PopulationFunc adapts a function to the Population interface.
type PopulationFunc func(ctx context.Context) (*Identity, error)

func (f PopulationFunc) Next(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// SlicePopulation streams a fixed slice of identities.
func SlicePopulation(ids []Identity) Population {
	i := 0
	return PopulationFunc(func(ctx context.Context) (*Identity, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(ids) {
			return nil, nil
		}
		id := &ids[i]
		i++
		return id, nil
	})
}

// Resolver performs 1:N identification of a probe embedding against the
// enrolled population using cosine distance.
//
// Resolution is best-match: the full candidate stream is scanned and the
// minimum-distance identity wins, but only when it is below the threshold
// and separated from the runner-up by at least the margin. Two enrolled
// identities both within threshold and closer than the margin apart are
// reported as ambiguous rather than silently picking one.
type Resolver struct {
	threshold float64
	margin    float64
}

// NewResolver creates a resolver with the given match threshold (cosine
// distance, typically 0.40) and ambiguity margin.
func NewResolver(threshold, margin float64) *Resolver {
	return &Resolver{threshold: threshold, margin: margin}
}

// Threshold returns the configured match threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Verify performs a 1:1 check of the probe against a single identity.
func (r *Resolver) Verify(probe []float32, identity *Identity) MatchResult {
	d := CosineDistance(probe, identity.Embedding)
	return MatchResult{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Distance:   d,
		Matched:    d <= r.threshold,
	}
}

// Resolve identifies the probe against the population. When hint is
// non-nil and the probe matches it, the population is not consulted at
// all; the hint is a latency optimization, not identity proof, so a hint
// match still requires the distance threshold to hold.
func (r *Resolver) Resolve(ctx context.Context, probe []float32, hint *Identity, population Population) (MatchResult, error) {
	if hint != nil {
		if m := r.Verify(probe, hint); m.Matched {
			return m, nil
		}
	}

	var best, second *MatchResult
	scanned := 0
	for {
		if err := ctx.Err(); err != nil {
			return MatchResult{}, goerr.Wrap(err, "identity resolution cancelled")
		}
		identity, err := population.Next(ctx)
		if err != nil {
			return MatchResult{}, goerr.Wrap(err, "reading population stream")
		}
		if identity == nil {
			break
		}
		if len(identity.Embedding) == 0 {
			continue
		}
		scanned++
		m := r.Verify(probe, identity)
		switch {
		case best == nil || m.Distance < best.Distance:
			second = best
			best = &m
		case second == nil || m.Distance < second.Distance:
			second = &m
		}
	}

	if best == nil || best.Distance > r.threshold {
		result := MatchResult{Matched: false, Scanned: scanned}
		if best != nil {
			result.Distance = best.Distance
		}
		return result, goerr.Wrap(ErrIdentityNotResolved, "no identity within threshold",
			goerr.V("threshold", r.threshold))
	}

	if second != nil && second.Distance <= r.threshold && second.Distance-best.Distance < r.margin {
		return MatchResult{Matched: false, Distance: best.Distance, Scanned: scanned},
			goerr.Wrap(ErrIdentityAmbiguous, "best match not separated from runner-up",
				goerr.V("best_distance", best.Distance),
				goerr.V("second_distance", second.Distance),
				goerr.V("margin", r.margin))
	}

	best.Scanned = scanned
	return *best, nil
}
