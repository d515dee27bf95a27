// Package constraint checks orders, equipment and proposed schedules against
// GMP and physical feasibility rules. All functions are pure and safe for
// concurrent use.
package constraint

import (
	"cmp"
	"slices"

	"github.com/example/gmpsched/internal/apperr"
)

// Severity of a finding.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Rule names the check that produced a finding.
type Rule string

const (
	RuleToxicityIsolation     Rule = "toxicity_isolation"
	RuleCapacity              Rule = "capacity"
	RuleEquipmentAvailability Rule = "equipment_availability"
	RuleCompleteness          Rule = "completeness"
	RuleSequence              Rule = "sequence"
	RuleOverlap               Rule = "overlap"
	RuleEquipmentMismatch     Rule = "equipment_mismatch"
	RuleUnknownReference      Rule = "unknown_reference"
	RuleVisualCheck           Rule = "visual_check"
)

// Finding is a single rule result.
type Finding struct {
	Rule        Rule     `json:"rule"`
	Severity    Severity `json:"severity"`
	OrderID     string   `json:"order_id,omitempty"`
	EquipmentID string   `json:"equipment_id,omitempty"`
	Message     string   `json:"message"`
}

// Blocking reports whether the finding prevents the plan from being used.
func (f Finding) Blocking() bool {
	return f.Severity == SeverityBlocking
}

// Report is the outcome of a validation run.
type Report struct {
	Valid          bool      `json:"valid"`
	Findings       []Finding `json:"findings"`
	CleaningCycles int       `json:"cleaning_cycles"`
}

// Blocking returns the blocking findings.
func (r Report) Blocking() []Finding {
	return r.filter(SeverityBlocking)
}

// Warnings returns the warning findings.
func (r Report) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

// ByRule returns the findings produced by one rule.
func (r Report) ByRule(rule Rule) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func (r Report) filter(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Err converts a report with blocking findings into a CONSTRAINT_VIOLATION
// error naming the first blocking finding.
func (r Report) Err() error {
	blocking := r.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	first := blocking[0]
	err := apperr.New(apperr.CodeConstraintViolation, "%d blocking finding(s): %s", len(blocking), first.Message).
		WithDetail("rule", string(first.Rule))
	if first.OrderID != "" {
		err.WithDetail("order", first.OrderID)
	}
	if first.EquipmentID != "" {
		err.WithDetail("equipment", first.EquipmentID)
	}
	return err
}

func newReport(findings []Finding, cleaningCycles int) Report {
	slices.SortFunc(findings, compareFindings)
	findings = slices.Compact(findings)
	valid := true
	for _, f := range findings {
		if f.Blocking() {
			valid = false
			break
		}
	}
	if findings == nil {
		findings = []Finding{}
	}
	return Report{Valid: valid, Findings: findings, CleaningCycles: cleaningCycles}
}

func compareFindings(a, b Finding) int {
	if a.Severity != b.Severity {
		if a.Severity == SeverityBlocking {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Rule, b.Rule); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EquipmentID, b.EquipmentID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.OrderID, b.OrderID); c != 0 {
		return c
	}
	return cmp.Compare(a.Message, b.Message)
}
