package result

import "strings"

// PathNotRecognized is the default report used when every failure is fluffy.
const PathNotRecognized = "URL path or SOAPAction not recognised"

// Results is an ordered list of match outcomes.
type Results []Result

func (rs Results) HasResults() bool { return len(rs) > 0 }

func (rs Results) HasFailures() bool { return rs.FailureCount() > 0 }

// Success reports whether no result failed.
func (rs Results) Success() bool { return !rs.HasFailures() }

func (rs Results) SuccessCount() int {
	n := 0
	for _, r := range rs {
		if r.IsSuccess() {
			n++
		}
	}
	return n
}

func (rs Results) FailureCount() int { return len(rs) - rs.SuccessCount() }

// Failures returns the failed results in order.
func (rs Results) Failures() []*Failure {
	var out []*Failure
	for _, r := range rs {
		if f := AsFailure(r); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// WithoutFluff drops fluffy failures. Successes are kept.
func (rs Results) WithoutFluff() Results {
	out := make(Results, 0, len(rs))
	for _, r := range rs {
		if f := AsFailure(r); f != nil && f.IsFluffy() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ToResultIfAny returns the first success, else the first result, else Success.
func (rs Results) ToResultIfAny() Result {
	for _, r := range rs {
		if r.IsSuccess() {
			return r
		}
	}
	if len(rs) > 0 {
		return rs[0]
	}
	return Success{}
}

// Report renders the failures. Fluffy failures are hidden when a specific one
// exists; when all are fluffy, defaultMessage leads and every failure follows.
func (rs Results) Report(defaultMessage string) string {
	specific := rs.WithoutFluff().Failures()
	if len(specific) > 0 {
		return joinReports(specific)
	}

	all := rs.Failures()
	if len(all) == 0 {
		return ""
	}
	if defaultMessage == "" {
		return joinReports(all)
	}
	return strings.TrimSpace(defaultMessage + "\n\n" + joinReports(all))
}

func joinReports(failures []*Failure) string {
	texts := make([]string, 0, len(failures))
	for _, f := range failures {
		if t := strings.TrimSpace(f.Report().Text()); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}
