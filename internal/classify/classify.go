// Package classify maps an AI-generated damage description to an issue
// category and a priority tier via ordered keyword matching. The rules are
// data, not code: both tables are scanned in declaration order and the first
// match wins.
package classify

import (
	"strings"

	"github.com/campusworks/maintenance-reporter/internal/domain"
)

type issueRule struct {
	Issue    domain.IssueType
	Keywords []string
}

type priorityRule struct {
	Priority domain.TicketPriority
	Keywords []string
}

// issueRules is scanned top to bottom; the first category with a matching
// keyword wins.
var issueRules = []issueRule{
	{domain.IssueTypeFan, []string{"fan"}},
	{domain.IssueTypeLight, []string{"light", "bulb", "tube", "lamp"}},
	{domain.IssueTypeFurniture, []string{"furniture", "chair", "table", "desk"}},
	{domain.IssueTypeElectronics, []string{"electronics", "laptop", "computer", "screen", "projector"}},
	{domain.IssueTypeElectrical, []string{"electrical", "socket", "switch", "wire"}},
}

// priorityRules is scanned high to low. An unmatched description defaults to
// medium: unclassified severity lands in the middle tier, not the bottom.
var priorityRules = []priorityRule{
	{domain.TicketPriorityHigh, []string{"severely", "broken", "damaged", "fire", "sparking", "dangerous"}},
	{domain.TicketPriorityMedium, []string{"not working", "malfunctioning", "cracked", "bent"}},
	{domain.TicketPriorityLow, []string{"no maintenance issues", "minor", "slight"}},
}

const defaultPriority = domain.TicketPriorityMedium

// Classify derives the issue type and priority from a damage description.
// Matching is case-insensitive substring search; the two scans are
// independent.
func Classify(description string) (domain.IssueType, domain.TicketPriority) {
	return IssueTypeOf(description), PriorityOf(description)
}

// IssueTypeOf returns the first category whose keywords appear in the
// description, or Other when none match.
func IssueTypeOf(description string) domain.IssueType {
	text := strings.ToLower(description)
	for _, rule := range issueRules {
		if containsAny(text, rule.Keywords) {
			return rule.Issue
		}
	}
	return domain.IssueTypeOther
}

// PriorityOf returns the first tier whose keywords appear in the
// description, or the medium default when none match.
func PriorityOf(description string) domain.TicketPriority {
	text := strings.ToLower(description)
	for _, rule := range priorityRules {
		if containsAny(text, rule.Keywords) {
			return rule.Priority
		}
	}
	return defaultPriority
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
