package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/dto"
	"github.com/eris-support/triage-service/internal/service"
)

// MissingAnswerText is returned while no answer has been drafted yet.
const MissingAnswerText = "Ответ AI ещё не сгенерирован"

// TelegramHandler serves the read-only endpoints polled by the messenger bot.
type TelegramHandler struct {
	service *service.TicketService
	auth    *service.AuthService
}

// NewTelegramHandler constructs handler.
func NewTelegramHandler(ticketService *service.TicketService, authService *service.AuthService) *TelegramHandler {
	return &TelegramHandler{service: ticketService, auth: authService}
}

// AllowedUsers GET /api/telegram/allowed-users.
func (h *TelegramHandler) AllowedUsers(c *fiber.Ctx) error {
	recipients, err := h.auth.AllowedTelegramUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.AllowedUsersResponse{Users: recipients.Users, Admins: recipients.Admins})
}

// Contacts GET /api/telegram/tickets/:id/contacts.
func (h *TelegramHandler) Contacts(c *fiber.Ctx) error {
	t, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	serials := t.DeviceSerials
	if serials == nil {
		serials = []string{}
	}
	return c.JSON(dto.ContactsResponse{
		ID:            t.ID,
		FullName:      t.FullName,
		Company:       t.Company,
		Phone:         t.Phone,
		Email:         t.Email,
		DeviceSerials: serials,
		DeviceType:    t.DeviceType,
	})
}

// GeneratedAnswer GET /api/telegram/tickets/:id/generated-answer.
func (h *TelegramHandler) GeneratedAnswer(c *fiber.Ctx) error {
	t, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	answer := t.AIResponse
	if strings.TrimSpace(answer) == "" {
		answer = MissingAnswerText
	}
	return c.JSON(dto.GeneratedAnswerResponse{ID: t.ID, AIResponse: answer})
}
