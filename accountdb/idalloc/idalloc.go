// Package idalloc implements the §4.G ID allocator: finding a fresh UID
// or GID under concurrent mutation, honoring the system/normal range
// split and any hinted/reserved values.
package idalloc

import (
	"fmt"
)

// ErrInUse is returned when no free id exists in the requested range —
// callers map this to the E_UID_IN_USE / UID_IN_USE exit code (§6).
var ErrInUse = fmt.Errorf("idalloc: no free id in range")

// Range is an inclusive [Min, Max] id range.
type Range struct {
	Min, Max int64
}

// Request captures the inputs to Find: the range to search, a caller
// hint (used only when HintGiven is set, so 0 is a valid hint), whether the hint must be honored exactly
// (duplicates disallowed), and the set of ids already considered used —
// present in the table, plus any pending-deletion or NSS-reserved ids
// the caller folds in.
type Request struct {
	Sys        bool
	Range      Range
	HintID     int64
	HintGiven  bool
	DisallowDup bool
	Used       map[int64]struct{}
}

// Find implements find_new_uid/find_new_gid. Callers MUST hold the
// suite lock for the duration of both the Used-set snapshot and the
// eventual Table.Update that consumes the returned id, per §4.G rule 3.
func Find(req Request) (int64, error) {
	if req.HintGiven {
		if _, used := req.Used[req.HintID]; !used {
			return req.HintID, nil
		}
		if req.DisallowDup {
			return 0, fmt.Errorf("idalloc: hinted id %d already in use", req.HintID)
		}
	}

	lo, hi := req.Range.Min, req.Range.Max
	if lo > hi {
		return 0, ErrInUse
	}

	if req.Sys {
		// System accounts: scan downward from the top of the range.
		for id := hi; id >= lo; id-- {
			if _, used := req.Used[id]; !used {
				return id, nil
			}
		}
		return 0, ErrInUse
	}

	// Normal accounts: one above the current maximum assigned id in
	// range, wrapping to the lowest free slot if that exceeds the range.
	maxAssigned := lo - 1
	haveAny := false
	for id := range req.Used {
		if id >= lo && id <= hi {
			haveAny = true
			if id > maxAssigned {
				maxAssigned = id
			}
		}
	}
	if !haveAny {
		return lo, nil
	}
	if maxAssigned+1 <= hi {
		if _, used := req.Used[maxAssigned+1]; !used {
			return maxAssigned + 1, nil
		}
	}
	for id := lo; id <= hi; id++ {
		if _, used := req.Used[id]; !used {
			return id, nil
		}
	}
	return 0, ErrInUse
}
