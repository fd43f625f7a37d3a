package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/eris-support/triage-service/internal/api/dto"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/service"
)

// KnowledgeBaseHandler serves the operator reference library.
type KnowledgeBaseHandler struct {
	service *service.KnowledgeBaseService
}

// NewKnowledgeBaseHandler constructs handler.
func NewKnowledgeBaseHandler(kb *service.KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{service: kb}
}

// ListSections GET /api/kb/sections.
func (h *KnowledgeBaseHandler) ListSections(c *fiber.Ctx) error {
	sections, err := h.service.ListSections(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.KBSectionResponse, 0, len(sections))
	for i := range sections {
		items = append(items, kbSection(&sections[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSection GET /api/kb/sections/:id.
func (h *KnowledgeBaseHandler) GetSection(c *fiber.Ctx) error {
	section, err := h.service.GetSection(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kbSection(&section)})
}

func kbSection(s *domain.KBSection) dto.KBSectionResponse {
	files := make([]dto.KBFileResponse, 0, len(s.Files))
	for _, f := range s.Files {
		out := dto.KBFileResponse{
			ID:        f.ID,
			SectionID: f.SectionID,
			Title:     f.Title,
			FilePath:  f.FilePath,
			CreatedAt: f.CreatedAt,
		}
		if f.Size > 0 {
			size := f.Size
			out.FileSize = &size
		}
		if f.MimeType != "" {
			mime := f.MimeType
			out.MimeType = &mime
		}
		files = append(files, out)
	}
	resp := dto.KBSectionResponse{
		ID:        s.ID,
		Title:     s.Title,
		Order:     s.Order,
		Files:     files,
		CreatedAt: s.CreatedAt,
	}
	if s.Description != "" {
		desc := s.Description
		resp.Description = &desc
	}
	return resp
}
