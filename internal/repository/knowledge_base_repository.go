package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eris-support/triage-service/internal/domain"
)

type knowledgeBaseRepository struct {
	pool *pgxpool.Pool
}

// NewKnowledgeBaseRepository returns a Postgres-backed implementation.
func NewKnowledgeBaseRepository(pool *pgxpool.Pool) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{pool: pool}
}

func (r *knowledgeBaseRepository) ListSections(ctx context.Context) ([]domain.KBSection, error) {
	const query = `
        SELECT id::text, title, COALESCE(description,''), order_idx, created_at
        FROM kb_sections ORDER BY order_idx ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, mapError("knowledge base sections", "", err)
	}
	defer rows.Close()

	var sections []domain.KBSection
	for rows.Next() {
		var s domain.KBSection
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Order, &s.CreatedAt); err != nil {
			return nil, mapError("knowledge base sections", "", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("knowledge base sections", "", err)
	}

	files, err := r.files(ctx, `SELECT `+kbFileColumns+` FROM kb_files ORDER BY section_id, id`)
	if err != nil {
		return nil, err
	}
	bySection := make(map[string][]domain.KBFile, len(sections))
	for _, f := range files {
		bySection[f.SectionID] = append(bySection[f.SectionID], f)
	}
	for i := range sections {
		sections[i].Files = bySection[sections[i].ID]
	}
	return sections, nil
}

func (r *knowledgeBaseRepository) GetSection(ctx context.Context, id string) (domain.KBSection, error) {
	key, err := parseID("knowledge base section", id)
	if err != nil {
		return domain.KBSection{}, err
	}
	const query = `
        SELECT id::text, title, COALESCE(description,''), order_idx, created_at
        FROM kb_sections WHERE id=$1`
	var s domain.KBSection
	if err := r.pool.QueryRow(ctx, query, key).Scan(&s.ID, &s.Title, &s.Description, &s.Order, &s.CreatedAt); err != nil {
		return domain.KBSection{}, mapError("knowledge base section", id, err)
	}
	s.Files, err = r.files(ctx, `SELECT `+kbFileColumns+` FROM kb_files WHERE section_id=$1 ORDER BY id`, key)
	if err != nil {
		return domain.KBSection{}, err
	}
	return s, nil
}

const kbFileColumns = `id::text, section_id::text, title, file_path, COALESCE(file_size,0), COALESCE(mime_type,''), created_at`

func (r *knowledgeBaseRepository) files(ctx context.Context, query string, args ...any) ([]domain.KBFile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("knowledge base files", "", err)
	}
	defer rows.Close()

	var files []domain.KBFile
	for rows.Next() {
		var f domain.KBFile
		if err := rows.Scan(&f.ID, &f.SectionID, &f.Title, &f.FilePath, &f.Size, &f.MimeType, &f.CreatedAt); err != nil {
			return nil, mapError("knowledge base files", "", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("knowledge base files", "", err)
	}
	return files, nil
}
