package domain

import "time"

// KBSection is a knowledge base chapter operators consult while answering.
// Sections are listed by Order, then by id.
type KBSection struct {
	ID          string
	Title       string
	Description string
	Order       int
	Files       []KBFile
	CreatedAt   time.Time
}

// KBFile is a reference document attached to a section. Size and MimeType
// are zero when unknown.
type KBFile struct {
	ID        string
	SectionID string
	Title     string
	FilePath  string
	Size      int64
	MimeType  string
	CreatedAt time.Time
}
