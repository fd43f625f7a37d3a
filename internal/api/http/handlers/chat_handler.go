package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/dto"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/service"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// ChatHandler serves a ticket's chat thread.
type ChatHandler struct {
	service *service.TicketService
}

// NewChatHandler constructs handler.
func NewChatHandler(ticketService *service.TicketService) *ChatHandler {
	return &ChatHandler{service: ticketService}
}

// List GET /api/tickets/:id/chat.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	msgs, err := h.service.Chat(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chatMessages(msgs)})
}

// Post POST /api/tickets/:id/chat.
func (h *ChatHandler) Post(c *fiber.Ctx) error {
	session, _ := auth.SessionFromContext(c)
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return apperrors.NewInvalidInput("role must be user, bot or operator", map[string]any{"role": req.Role})
	}

	res, err := h.service.PostMessage(c.UserContext(), session, c.Params("id"), role, req.Text)
	if err != nil {
		return err
	}

	out := dto.PostMessageResponse{
		Message:    chatMessage(res.Message),
		Status:     res.Ticket.Status,
		Escalated:  res.Decision.Escalated,
		Suppressed: res.Suppressed,
	}
	if res.Reply != nil {
		reply := chatMessage(*res.Reply)
		out.Reply = &reply
	}
	if res.ReplyErr != nil {
		de := apperrors.ToDomainError(res.ReplyErr)
		out.ReplyError = &dto.ErrorBody{Code: de.Code, Message: de.Message}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": out})
}

// Affordances GET /api/tickets/:id/affordances.
func (h *ChatHandler) Affordances(c *fiber.Ctx) error {
	aff, err := h.service.Affordances(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": aff})
}
