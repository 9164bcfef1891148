package harness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInconsistentReport = errors.New("inconsistent test report")

// Sentinels are the line prefixes one harness program prints. A per-request
// nonce keeps submissions from printing lines that parse as markers.
type Sentinels struct {
	Case    string
	Summary string
}

func NewSentinels(nonce string) Sentinels {
	return Sentinels{Case: CaseTag + nonce, Summary: SummaryTag + nonce}
}

// CaseMarker is one parsed case line.
type CaseMarker struct {
	ID       string
	Passed   bool
	Input    string
	Expected string
	Actual   string
}

// Report is what a harness program printed. Passed and Total come from the
// summary line when one was printed, otherwise from the case lines.
type Report struct {
	Cases   []CaseMarker
	Passed  int
	Total   int
	Summary bool

	summaries int
}

// Case returns the last marker reported under id.
func (r *Report) Case(id string) (CaseMarker, bool) {
	for i := len(r.Cases) - 1; i >= 0; i-- {
		if r.Cases[i].ID == id {
			return r.Cases[i], true
		}
	}
	return CaseMarker{}, false
}

// Consistent checks that no case was reported twice and that the summary,
// when present, agrees with the case lines.
func (r *Report) Consistent() error {
	seen := make(map[string]bool, len(r.Cases))
	passed := 0
	for _, c := range r.Cases {
		if seen[c.ID] {
			return fmt.Errorf("%w: case %s reported twice", ErrInconsistentReport, c.ID)
		}
		seen[c.ID] = true
		if c.Passed {
			passed++
		}
	}
	if r.summaries > 1 {
		return fmt.Errorf("%w: %d summary lines", ErrInconsistentReport, r.summaries)
	}
	if !r.Summary {
		return nil
	}
	if r.Total != len(r.Cases) {
		return fmt.Errorf("%w: summary total %d, %d cases reported", ErrInconsistentReport, r.Total, len(r.Cases))
	}
	if r.Passed != passed {
		return fmt.Errorf("%w: summary passed %d, %d cases passed", ErrInconsistentReport, r.Passed, passed)
	}
	return nil
}

// ParseMarkers scans stdout for lines carrying s; anything else is ignored.
// It returns false when no case marker was found at all, which callers must
// keep apart from a report in which every case failed.
func ParseMarkers(stdout string, s Sentinels) (*Report, bool) {
	r := &Report{}
	casePrefix := s.Case + Delimiter
	summaryPrefix := s.Summary + Delimiter

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, casePrefix):
			fields := strings.SplitN(strings.TrimPrefix(line, casePrefix), Delimiter, 5)
			if len(fields) != 5 {
				continue
			}
			status := fields[1]
			if status != StatusPassed && status != StatusFailed {
				continue
			}
			r.Cases = append(r.Cases, CaseMarker{
				ID:       fields[0],
				Passed:   status == StatusPassed,
				Input:    fields[2],
				Expected: fields[3],
				Actual:   fields[4],
			})
		case strings.HasPrefix(line, summaryPrefix):
			fields := strings.Split(strings.TrimPrefix(line, summaryPrefix), Delimiter)
			if len(fields) != 2 {
				continue
			}
			passed, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
			total, err2 := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err1 != nil || err2 != nil {
				continue
			}
			r.Passed, r.Total, r.Summary = passed, total, true
			r.summaries++
		}
	}

	if len(r.Cases) == 0 {
		return nil, false
	}
	if !r.Summary {
		r.Total = len(r.Cases)
		for _, c := range r.Cases {
			if c.Passed {
				r.Passed++
			}
		}
	}
	return r, true
}
