package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/dto"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/export"
	"github.com/eris-support/triage-service/internal/service"
	"github.com/eris-support/triage-service/internal/view"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// TicketsHandler serves the operator ticket table and ticket detail.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), parseViewQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /api/tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), parseViewQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// IntakeTicket POST /api/tickets.
func (h *TicketsHandler) IntakeTicket(c *fiber.Ctx) error {
	var req dto.IntakeTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	intake := domain.TicketIntake{
		FullName:      req.FullName,
		Company:       req.Company,
		Phone:         req.Phone,
		Email:         req.Email,
		DeviceSerials: req.DeviceSerials,
		DeviceType:    req.DeviceType,
		Sentiment:     req.Sentiment,
		Category:      req.Category,
		Summary:       req.Summary,
		OriginalEmail: req.OriginalEmail,
		AIResponse:    req.AIResponse,
		Status:        req.Status,
	}
	if req.DateReceived != nil {
		intake.DateReceived = req.DateReceived.UTC()
	}
	ticket, err := h.service.IntakeTicket(c.UserContext(), intake)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(&ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(&ticket)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), session, c.Params("id"), domain.TicketPatch{
		AIResponse: req.AIResponse,
		Status:     req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(&ticket)})
}

// SendResponse POST /api/tickets/:id/send.
func (h *TicketsHandler) SendResponse(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	ticket, err := h.service.SendResponse(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(&ticket)})
}

// CloseTicket POST /api/tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	ticket, err := h.service.CloseTicket(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(&ticket)})
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	changes, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.StatusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		items = append(items, dto.StatusChangeResponse{
			ID:        ch.ID,
			OldStatus: ch.OldStatus,
			NewStatus: ch.NewStatus,
			ChangedBy: ch.ChangedBy,
			Reason:    ch.Reason,
			CreatedAt: ch.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Export GET /api/tickets/export.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", string(export.FormatCSV)))
	if err != nil {
		return err
	}
	file, err := h.service.Export(c.UserContext(), parseViewQuery(c), format)
	if err != nil {
		return err
	}
	c.Attachment(file.Name)
	c.Set(fiber.HeaderContentType, file.ContentType)
	return c.Send(file.Body)
}

func parseViewQuery(c *fiber.Ctx) view.Query {
	return view.Query{
		Text:      c.Query("q"),
		Sort:      c.Query("sort"),
		Dir:       c.Query("dir"),
		Status:    domain.TicketStatus(c.Query("status")),
		Sentiment: domain.Sentiment(c.Query("sentiment")),
		Category:  domain.Category(c.Query("category")),
	}
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	serials := t.DeviceSerials
	if serials == nil {
		serials = []string{}
	}
	return dto.TicketSummary{
		ID:            t.ID,
		DateReceived:  t.DateReceived,
		FullName:      t.FullName,
		Company:       t.Company,
		Phone:         t.Phone,
		Email:         t.Email,
		DeviceSerials: serials,
		DeviceType:    t.DeviceType,
		Sentiment:     t.Sentiment,
		Category:      t.Category,
		Summary:       t.Summary,
		Status:        t.Status,
	}
}

func ticketDetail(t *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(t),
		OriginalEmail: t.OriginalEmail,
		AIResponse:    t.AIResponse,
		ChatHistory:   chatMessages(t.ChatHistory),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func chatMessages(msgs []domain.ChatMessage) []dto.ChatMessageResponse {
	out := make([]dto.ChatMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessage(m))
	}
	return out
}

func chatMessage(m domain.ChatMessage) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{ID: m.ID, Role: m.Role.String(), Text: m.Text, CreatedAt: m.CreatedAt}
}

