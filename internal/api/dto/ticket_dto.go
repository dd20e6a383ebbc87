package dto

import (
	"time"

	"github.com/campusworks/maintenance-reporter/internal/domain"
)

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	UserID      int64                 `json:"user_id"`
	StudentName string                `json:"student_name"`
	Location    string                `json:"location"`
	IssueType   domain.IssueType      `json:"issue_type"`
	Description string                `json:"description"`
	ImageURL    string                `json:"image_url,omitempty"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedAt   time.Time             `json:"created_at"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateTicketRequest carries the editable fields; absent fields stay as
// they are. Status is not editable through this payload.
type UpdateTicketRequest struct {
	StudentName *string `json:"student_name"`
	Location    *string `json:"location"`
	IssueType   *string `json:"issue_type"`
	Priority    *string `json:"priority"`
}
