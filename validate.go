package gridcore

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity indicates the severity of a workbook invariant violation.
type Severity int

const (
	SeverityError   Severity = iota // document is structurally inconsistent
	SeverityWarning                 // document is usable but suspicious
)

// Issue represents a single problem found during workbook validation.
type Issue struct {
	Severity Severity
	Sheet    string // sheet name, empty for workbook-level issues
	Ref      string // offending address/range/name, if any
	Message  string
}

// String formats the issue as "[ERROR] Sheet1!A1:B2: message".
func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	loc := i.Ref
	if i.Sheet != "" && loc != "" {
		loc = i.Sheet + "!" + loc
	} else if i.Sheet != "" {
		loc = i.Sheet
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", sev, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", sev, loc, i.Message)
}

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	cellRefPattern = regexp.MustCompile(`^[A-Za-z]{1,3}[0-9]+$`)

	reservedNames = map[string]bool{"TRUE": true, "FALSE": true, "NULL": true}
)

// ValidateName checks a named-range name: identifier syntax, not a bare
// cell reference, not a reserved word.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q is not a valid identifier", name)
	}
	if cellRefPattern.MatchString(name) {
		return fmt.Errorf("name %q collides with a cell reference", name)
	}
	if reservedNames[strings.ToUpper(name)] {
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}

// Validate checks workbook-level invariants and returns every violation
// found. An empty result means the document is consistent.
func (wb *Workbook) Validate() []Issue {
	var issues []Issue

	if len(wb.Sheets) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "workbook must contain at least one sheet",
		})
	}

	seen := make(map[string]bool, len(wb.Sheets))
	for _, s := range wb.Sheets {
		if seen[s.Name] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Sheet:    s.Name,
				Message:  "duplicate sheet name",
			})
		}
		seen[s.Name] = true
		issues = append(issues, s.validate()...)
	}

	for name, ref := range wb.NamedRanges {
		issues = append(issues, validateNamedRange("", name, ref)...)
	}
	return issues
}

func (s *Sheet) validate() []Issue {
	var issues []Issue

	for key := range s.Cells {
		if _, err := ParseAddress(key); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Sheet:    s.Name,
				Ref:      key,
				Message:  "malformed cell address key",
			})
		}
	}

	ranges := make([]Range, 0, len(s.Merges))
	for _, m := range s.Merges {
		r, err := ParseRange(m)
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Sheet:    s.Name,
				Ref:      m,
				Message:  "malformed merged range",
			})
			continue
		}
		if r.Size() < 2 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Sheet:    s.Name,
				Ref:      m,
				Message:  "merged range must span at least two cells",
			})
		}
		for _, prev := range ranges {
			if prev.Overlaps(r) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Sheet:    s.Name,
					Ref:      m,
					Message:  fmt.Sprintf("merged range overlaps %s", prev),
				})
			}
		}
		ranges = append(ranges, r)
	}

	for name, ref := range s.NamedRanges {
		issues = append(issues, validateNamedRange(s.Name, name, ref)...)
	}
	return issues
}

func validateNamedRange(sheet, name, ref string) []Issue {
	var issues []Issue
	if err := ValidateName(name); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Sheet:    sheet,
			Ref:      name,
			Message:  err.Error(),
		})
	}
	if _, err := ParseRange(ref); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Sheet:    sheet,
			Ref:      name,
			Message:  fmt.Sprintf("named range has malformed reference %q", ref),
		})
	}
	return issues
}
