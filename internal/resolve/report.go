package resolve

import (
	"time"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
)

// KindReport counts what happened to the references of one kind.
type KindReport struct {
	Kind Kind `json:"kind"`
	// References is every reference walked, whatever its outcome.
	References int `json:"references"`
	Resolved   int `json:"resolved"`
	// External counts references linked to a stub, ambiguous ones included.
	External int `json:"external"`
	// Ambiguous counts references whose only candidates were several
	// entities sharing a name.
	Ambiguous int `json:"ambiguous"`
	// Mismatched counts references naming an in-repo entity of a type the
	// kind cannot link to. They get neither an edge nor a stub.
	Mismatched int `json:"mismatched"`
	// Skipped counts self references and references with nothing to look up.
	Skipped int `json:"skipped"`
	// Orphaned counts containment references whose parent was not found.
	Orphaned int `json:"orphaned"`
	// Edges counts emitted edges, reciprocals included, after de-duplication.
	Edges      int              `json:"edges"`
	ByStrategy map[Strategy]int `json:"by_strategy,omitempty"`
	Error      string           `json:"error,omitempty"`

	err error
}

func (k *KindReport) add(o KindReport) {
	k.References += o.References
	k.Resolved += o.Resolved
	k.External += o.External
	k.Ambiguous += o.Ambiguous
	k.Mismatched += o.Mismatched
	k.Skipped += o.Skipped
	k.Orphaned += o.Orphaned
	k.Edges += o.Edges
	for s, n := range o.ByStrategy {
		if k.ByStrategy == nil {
			k.ByStrategy = make(map[Strategy]int)
		}
		k.ByStrategy[s] += n
	}
}

// Report summarizes a resolution pass. It is produced even when some kinds
// failed, so a partial run is visible rather than silent.
type Report struct {
	RepositoryID string        `json:"repository_id"`
	Entities     int           `json:"entities"`
	Kinds        []KindReport  `json:"kinds"`
	Totals       KindReport    `json:"totals"`
	Externals    int           `json:"externals"`
	Duration     time.Duration `json:"duration_ns"`
}

// Kind returns the report of one kind.
func (r *Report) Kind(k Kind) (KindReport, bool) {
	for _, kr := range r.Kinds {
		if kr.Kind == k {
			return kr, true
		}
	}
	return KindReport{}, false
}

// Failed lists the kinds whose pass failed.
func (r *Report) Failed() []Kind {
	var out []Kind
	for _, kr := range r.Kinds {
		if kr.Error != "" {
			out = append(out, kr.Kind)
		}
	}
	return out
}

// Err combines the failures of every kind, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, kr := range r.Kinds {
		if kr.err != nil {
			errs = append(errs, kr.err)
		}
	}
	return cgerrors.NewMultiError(errs).ErrorOrNil()
}

func (r *Report) total() {
	r.Totals = KindReport{Kind: "total"}
	for _, kr := range r.Kinds {
		r.Totals.add(kr)
	}
}
