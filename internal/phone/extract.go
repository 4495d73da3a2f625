package phone

import "regexp"

// minCandidateDigits filters out dates, prices and other short digit runs.
const minCandidateDigits = 7

var (
	// candidatePattern matches an optional '+', an optional '(' and a run of
	// digits joined by at most two separator characters at a time.
	candidatePattern = regexp.MustCompile(`\+?\(?\d(?:[ \t.()\-]{0,2}\d)+`)

	digitGroup = regexp.MustCompile(`\d+`)
)

// FindCandidates returns the phone-like substrings of text in document order,
// using [DefaultPlan] to split runs that hold more than one number.
func FindCandidates(text string) []string { return DefaultPlan.FindCandidates(text) }

// FindCandidates returns the phone-like substrings of text in document order.
// A run of digit groups is cut at a group boundary once it holds a valid
// number that the next group would spoil, or would grow past the longest
// number the plan allows. Candidates are not validated.
func (p Plan) FindCandidates(text string) []string {
	var out []string
	for _, m := range candidatePattern.FindAllString(text, -1) {
		out = append(out, p.splitRun(m)...)
	}
	return out
}

func (p Plan) splitRun(run string) []string {
	maxDigits := p.NationalLength + len(p.CountryCode)

	var (
		out    []string
		start  int
		end    int
		digits string
	)
	emit := func() {
		if len(digits) >= minCandidateDigits {
			out = append(out, run[start:end])
		}
	}

	for _, g := range digitGroup.FindAllStringIndex(run, -1) {
		group := run[g[0]:g[1]]
		if digits != "" {
			next := digits + group
			if len(next) > maxDigits || (p.IsValid(digits) && !p.IsValid(next)) {
				emit()
				start = g[0]
				if start > 0 && (run[start-1] == '(' || run[start-1] == '+') {
					start--
				}
				digits = ""
			}
		}
		digits += group
		end = g[1]
	}
	if digits != "" {
		emit()
	}
	return out
}
