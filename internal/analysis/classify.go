package analysis

import "github.com/alfredjeanlab/crater/internal/model"

// Classify maps a pair of build outcomes to a comparison status.
func Classify(from, to model.Outcome) model.Status {
	switch {
	case from == model.OutcomeSuccess && to == model.OutcomeSuccess:
		return model.StatusWorking
	case from == model.OutcomeFailure && to == model.OutcomeFailure:
		return model.StatusBroken
	case from == model.OutcomeSuccess && to == model.OutcomeFailure:
		return model.StatusRegressed
	case from == model.OutcomeFailure && to == model.OutcomeSuccess:
		return model.StatusFixed
	}
	return model.StatusUnknown
}

// ClassifyPairs classifies every pair, in input order. A nil toolchain on
// either side means there is nothing to compare against and yields an
// empty, non-nil list.
func ClassifyPairs(from, to *model.Toolchain, pairs []model.ResultPair) []model.StatusEntry {
	if from == nil || to == nil {
		return []model.StatusEntry{}
	}
	out := make([]model.StatusEntry, len(pairs))
	for i, p := range pairs {
		out[i] = model.StatusEntry{
			PackageName:    p.PackageName,
			PackageVersion: p.PackageVersion,
			Status:         Classify(p.From, p.To),
			From:           p.From,
			To:             p.To,
		}
	}
	return out
}

// Summarize counts entries per status.
func Summarize(entries []model.StatusEntry) model.Summary {
	var s model.Summary
	for _, e := range entries {
		switch e.Status {
		case model.StatusWorking:
			s.Working++
		case model.StatusBroken:
			s.Broken++
		case model.StatusRegressed:
			s.Regressed++
		case model.StatusFixed:
			s.Fixed++
		default:
			s.Unknown++
		}
	}
	return s
}

// FilterStatus returns the entries with the given status, in input order.
func FilterStatus(entries []model.StatusEntry, status model.Status) []model.StatusEntry {
	var out []model.StatusEntry
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}
