package store

import (
	"context"
	"encoding/json"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Submission Operations
// =============================================================================

// submissionRow represents a submission row in the database.
type submissionRow struct {
	ID        string `db:"id"`
	FormID    string `db:"form_id"`
	CreatedAt string `db:"created_at"`
}

// answerRow represents an answer row in the database.
type answerRow struct {
	ID           string  `db:"id"`
	SubmissionID string  `db:"submission_id"`
	FieldID      string  `db:"field_id"`
	Position     int     `db:"position"`
	Value        *string `db:"value"`
	FilePath     *string `db:"file_path"`
}

// CreateSubmission stores the submission and its answers atomically.
func (s *SQLStore) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	subQuery := `
		INSERT INTO submissions (id, form_id, created_at)
		VALUES (:id, :form_id, :created_at)`

	answerQuery := `
		INSERT INTO answers (id, submission_id, field_id, position, value, file_path)
		VALUES (:id, :submission_id, :field_id, :position, :value, :file_path)`

	return s.atomic(ctx, "CreateSubmission", func(tx *SQLStore) error {
		row := map[string]any{
			"id":         sub.ID,
			"form_id":    sub.FormID,
			"created_at": formatTime(sub.CreatedAt),
		}
		if _, err := tx.exec.NamedExecContext(ctx, subQuery, row); err != nil {
			if foreignKeyViolation(err) {
				return NewStoreError("CreateSubmission", "submission", sub.ID, "form does not exist", ErrForeignKey)
			}
			if uniqueViolation(err, "submissions.id") {
				return NewStoreError("CreateSubmission", "submission", sub.ID, "submission with this ID already exists", ErrDuplicateID)
			}
			return NewStoreError("CreateSubmission", "submission", sub.ID, err.Error(), err)
		}

		for i, a := range sub.Answers {
			value, err := json.Marshal(a.Value)
			if err != nil {
				return NewStoreError("CreateSubmission", "answer", a.ID, "failed to serialize value", ErrInvalidData)
			}
			encoded := string(value)

			row := map[string]any{
				"id":            a.ID,
				"submission_id": sub.ID,
				"field_id":      a.FieldID,
				"position":      i,
				"value":         &encoded,
				"file_path":     nullString(a.FilePath),
			}
			if _, err := tx.exec.NamedExecContext(ctx, answerQuery, row); err != nil {
				return NewStoreError("CreateSubmission", "answer", a.ID, err.Error(), err)
			}
		}
		return nil
	})
}

func (s *SQLStore) CountSubmissions(ctx context.Context, formID string) (int, error) {
	var n int
	query := s.exec.Rebind(`SELECT COUNT(*) FROM submissions WHERE form_id = ?`)
	if err := s.exec.GetContext(ctx, &n, query, formID); err != nil {
		return 0, NewStoreError("CountSubmissions", "submission", formID, err.Error(), err)
	}
	return n, nil
}

// ListSubmissions returns every submission of the form, oldest first, with
// answers in the order they were given.
func (s *SQLStore) ListSubmissions(ctx context.Context, formID string) ([]domain.Submission, error) {
	var subs []submissionRow
	query := s.exec.Rebind(`SELECT * FROM submissions WHERE form_id = ? ORDER BY created_at, id`)
	if err := s.exec.SelectContext(ctx, &subs, query, formID); err != nil {
		return nil, NewStoreError("ListSubmissions", "submission", formID, err.Error(), err)
	}
	if len(subs) == 0 {
		return []domain.Submission{}, nil
	}

	var answers []answerRow
	query = s.exec.Rebind(`
		SELECT a.* FROM answers a
		JOIN submissions s ON s.id = a.submission_id
		WHERE s.form_id = ?
		ORDER BY a.submission_id, a.position`)
	if err := s.exec.SelectContext(ctx, &answers, query, formID); err != nil {
		return nil, NewStoreError("ListSubmissions", "answer", formID, err.Error(), err)
	}

	bySub := make(map[string][]domain.Answer, len(subs))
	for i := range answers {
		a, err := rowToAnswer(&answers[i])
		if err != nil {
			return nil, err
		}
		bySub[a.SubmissionID] = append(bySub[a.SubmissionID], *a)
	}

	out := make([]domain.Submission, len(subs))
	for i, row := range subs {
		list := bySub[row.ID]
		if list == nil {
			list = []domain.Answer{}
		}
		out[i] = domain.Submission{
			ID:        row.ID,
			FormID:    row.FormID,
			CreatedAt: parseTime(row.CreatedAt),
			Answers:   list,
		}
	}
	return out, nil
}

// ListFilePaths returns the upload paths referenced by the form's answers.
func (s *SQLStore) ListFilePaths(ctx context.Context, formID string) ([]string, error) {
	var paths []string
	query := s.exec.Rebind(`
		SELECT a.file_path FROM answers a
		JOIN submissions s ON s.id = a.submission_id
		WHERE s.form_id = ? AND a.file_path IS NOT NULL AND a.file_path <> ''
		ORDER BY a.file_path`)
	if err := s.exec.SelectContext(ctx, &paths, query, formID); err != nil {
		return nil, NewStoreError("ListFilePaths", "answer", formID, err.Error(), err)
	}
	return paths, nil
}

// rowToAnswer converts a database row to a domain.Answer.
func rowToAnswer(row *answerRow) (*domain.Answer, error) {
	var value any
	if row.Value != nil && *row.Value != "" {
		if err := json.Unmarshal([]byte(*row.Value), &value); err != nil {
			return nil, NewStoreError("rowToAnswer", "answer", row.ID, "failed to parse value", ErrInvalidData)
		}
	}

	return &domain.Answer{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		FieldID:      row.FieldID,
		Value:        normalizeValue(value),
		FilePath:     derefString(row.FilePath),
	}, nil
}

// normalizeValue turns decoded string arrays back into []string.
func normalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return v
		}
		out = append(out, s)
	}
	return out
}
