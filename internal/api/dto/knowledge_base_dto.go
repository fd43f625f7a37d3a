package dto

import "time"

// KBFileResponse is one knowledge base document.
type KBFileResponse struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path"`
	FileSize  *int64    `json:"file_size"`
	MimeType  *string   `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// KBSectionResponse is a knowledge base section with its files.
type KBSectionResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Order       int              `json:"order_idx"`
	Files       []KBFileResponse `json:"files"`
	CreatedAt   time.Time        `json:"created_at"`
}
