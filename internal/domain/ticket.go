package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is one of the four enum values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency tiers derived from the AI description.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is a known tier.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// IssueType categorizes the broken equipment.
type IssueType string

const (
	IssueTypeFan         IssueType = "Fan"
	IssueTypeLight       IssueType = "Light"
	IssueTypeFurniture   IssueType = "Furniture"
	IssueTypeElectronics IssueType = "Electronics"
	IssueTypeElectrical  IssueType = "Electrical"
	IssueTypeOther       IssueType = "Other"
)

// Valid reports whether the issue type is a known category.
func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeFan, IssueTypeLight, IssueTypeFurniture, IssueTypeElectronics, IssueTypeElectrical, IssueTypeOther:
		return true
	}
	return false
}

// Ticket is the aggregate for maintenance reports. Classification fields
// (issue type, description, priority) are populated by the pipeline before
// the row is ever visible to a reader.
type Ticket struct {
	ID          int64
	UserID      int64
	StudentName string
	Location    string
	IssueType   IssueType
	Description string
	ImagePath   string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
}
