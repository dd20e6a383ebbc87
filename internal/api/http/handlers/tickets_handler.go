package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/maintenance-reporter/internal/api/dto"
	"github.com/campusworks/maintenance-reporter/internal/auth"
	"github.com/campusworks/maintenance-reporter/internal/config"
	"github.com/campusworks/maintenance-reporter/internal/domain"
	"github.com/campusworks/maintenance-reporter/internal/repository"
	"github.com/campusworks/maintenance-reporter/internal/service"
	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	upload  config.UploadConfig
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, upload config.UploadConfig) *TicketsHandler {
	return &TicketsHandler{service: ticketService, upload: upload}
}

// CreateTicket POST /api/tickets. Multipart form: student_name, location,
// image.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	studentName := strings.TrimSpace(c.FormValue("student_name"))
	location := strings.TrimSpace(c.FormValue("location"))
	if studentName == "" || location == "" {
		return apperrors.NewValidationError("student_name and location required", nil)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return apperrors.NewValidationError("image file required", nil)
	}
	if h.upload.MaxImageBytes > 0 && fileHeader.Size > h.upload.MaxImageBytes {
		return apperrors.NewValidationError("image too large", map[string]any{"max_bytes": h.upload.MaxImageBytes})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable image file", nil)
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewValidationError("unreadable image file", nil)
	}

	// Sniff the actual bytes; the pipeline never sees non-image input.
	mimeType := http.DetectContentType(imageBytes)
	if !strings.HasPrefix(mimeType, "image/") {
		return apperrors.NewValidationError("uploaded file is not an image", map[string]any{"detected_type": mimeType})
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), caller, service.TicketCreateInput{
		StudentName: studentName,
		Location:    location,
		Image:       imageBytes,
		MimeType:    mimeType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page := parseInt(c.Query("page"), 1)
	pageSize := parsePageSize(c.Query("page_size"))
	tickets, err := h.service.ListTickets(c.UserContext(), caller, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.ticketResponse(c, &tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	ticket, err := h.service.GetTicket(c.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), caller, id, domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := repository.TicketPatch{
		StudentName: req.StudentName,
		Location:    req.Location,
	}
	if req.IssueType != nil {
		issueType := domain.IssueType(*req.IssueType)
		patch.IssueType = &issueType
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		patch.Priority = &priority
	}

	ticket, err := h.service.UpdateFields(c.UserContext(), caller, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(c, ticket)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	caller, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteTicket(c.UserContext(), caller, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "deleted", "ticket_id": id}})
}

func (h *TicketsHandler) ticketResponse(c *fiber.Ctx, ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		UserID:      ticket.UserID,
		StudentName: ticket.StudentName,
		Location:    ticket.Location,
		IssueType:   ticket.IssueType,
		Description: ticket.Description,
		ImageURL:    h.service.ImageURL(c.UserContext(), ticket),
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		CreatedAt:   ticket.CreatedAt,
	}
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// parsePageSize bounds the listing page size; oversized values are clamped
// so a caller cannot drive an arbitrarily large query limit.
func parsePageSize(val string) int {
	size := parseInt(val, defaultPageSize)
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
