package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusworks/maintenance-reporter/internal/classify"
	"github.com/campusworks/maintenance-reporter/internal/domain"
	"github.com/campusworks/maintenance-reporter/internal/events"
	"github.com/campusworks/maintenance-reporter/internal/repository"
	"github.com/campusworks/maintenance-reporter/internal/storage"
	"github.com/campusworks/maintenance-reporter/internal/vision"
	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

// TicketService coordinates the creation pipeline and the ticket lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	analyzer   vision.Analyzer
	images     storage.ObjectStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Analyzer   vision.Analyzer
	Images     storage.ObjectStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	StudentName string
	Location    string
	Image       []byte
	MimeType    string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		analyzer:   deps.Analyzer,
		images:     deps.Images,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket runs the three-stage pipeline: analyze the image, classify
// the description, persist the assembled record. A failed analysis aborts
// before anything is stored; a failed insert removes the stored image so no
// orphan object survives.
func (s *TicketService) CreateTicket(ctx context.Context, caller *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	description, err := s.analyzer.Describe(ctx, input.Image, input.MimeType)
	if err != nil {
		return nil, err
	}

	issueType, priority := classify.Classify(description)

	imagePath, err := s.images.Put(ctx, input.Image, input.MimeType)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	ticket := &domain.Ticket{
		UserID:      caller.ID,
		StudentName: strings.TrimSpace(input.StudentName),
		Location:    strings.TrimSpace(input.Location),
		IssueType:   issueType,
		Description: description,
		ImagePath:   imagePath,
		Status:      domain.TicketStatusPending,
		Priority:    priority,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if removeErr := s.images.Remove(ctx, imagePath); removeErr != nil {
			s.logger.Warn("orphaned image cleanup failed",
				zap.String("image_path", imagePath), zap.Error(removeErr))
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketCreatedPayload{
			Location:  ticket.Location,
			IssueType: ticket.IssueType,
			Priority:  ticket.Priority,
		},
	})
	return ticket, nil
}

// ListTickets applies the visibility gate: students see only their own
// tickets, admins see all.
func (s *TicketService) ListTickets(ctx context.Context, caller *domain.User, limit, offset int) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Limit: limit, Offset: offset}
	if caller.Role != domain.RoleAdmin {
		filter.UserID = &caller.ID
	}
	return s.tickets.List(ctx, filter)
}

// GetTicket fetches a single ticket subject to the same visibility rule. A
// foreign ticket reads as not found rather than forbidden, so ids are not
// probeable.
func (s *TicketService) GetTicket(ctx context.Context, caller *domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleAdmin && ticket.UserID != caller.ID {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

// UpdateStatus overwrites the status field only. Admin only. Any of the
// four enum values is accepted from any current status; the workflow stays
// permissive on purpose.
func (s *TicketService) UpdateStatus(ctx context.Context, caller *domain.User, ticketID int64, status domain.TicketStatus) (*domain.Ticket, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticketID, status); err != nil {
		return nil, err
	}
	ticket.Status = status

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})
	return ticket, nil
}

// UpdateFields edits ticket fields other than status. Allowed for the
// owning student or an admin.
func (s *TicketService) UpdateFields(ctx context.Context, caller *domain.User, ticketID int64, patch repository.TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && ticket.UserID != caller.ID {
		return nil, apperrors.NewForbidden("only the owner or an admin may edit a ticket")
	}
	if patch.IssueType != nil && !patch.IssueType.Valid() {
		return nil, apperrors.NewValidationError("invalid issue type", map[string]any{"issue_type": *patch.IssueType})
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
	}
	if patch.Empty() {
		return ticket, nil
	}

	if err := s.tickets.UpdateFields(ctx, ticketID, patch); err != nil {
		return nil, err
	}
	return s.tickets.GetByID(ctx, ticketID)
}

// DeleteTicket removes the row and cascades removal of the stored image.
// Admin only.
func (s *TicketService) DeleteTicket(ctx context.Context, caller *domain.User, ticketID int64) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}

	if ticket.ImagePath != "" {
		if err := s.images.Remove(ctx, ticket.ImagePath); err != nil {
			s.logger.Warn("image cascade removal failed",
				zap.String("image_path", ticket.ImagePath), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticketID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Payload:   events.TicketDeletedPayload{ImagePath: ticket.ImagePath},
	})
	return nil
}

// ImageURL resolves a ticket's stored object key to a presigned GET URL.
func (s *TicketService) ImageURL(ctx context.Context, ticket *domain.Ticket) string {
	if ticket.ImagePath == "" {
		return ""
	}
	url, err := s.images.PresignedURL(ctx, ticket.ImagePath)
	if err != nil {
		s.logger.Debug("presign failed", zap.String("image_path", ticket.ImagePath), zap.Error(err))
		return ""
	}
	return url
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
