package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sowforge/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// UpsertDocument stores the full draft payload keyed by slot. The denormalized
// columns exist for listing without unmarshaling the payload.
func (r Repo) UpsertDocument(ctx context.Context, tx *sql.Tx, slot string, doc domain.DocumentDraft, now string) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents(slot,id,status,title,client_name,created_at,updated_at,payload_json) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(slot) DO UPDATE SET id=excluded.id, status=excluded.status, title=excluded.title, client_name=excluded.client_name, updated_at=excluded.updated_at, payload_json=excluded.payload_json`,
		slot, doc.ID, doc.Status, doc.Meta.Title, doc.Meta.ClientName, doc.Meta.CreatedAt, now, string(payload))
	return err
}

func scanDocument(payload string) (domain.DocumentDraft, error) {
	var doc domain.DocumentDraft
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return doc, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

func (r Repo) GetDocument(ctx context.Context, slot string) (domain.DocumentDraft, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT payload_json FROM documents WHERE slot=?`, slot).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.DocumentDraft{}, ErrNotFound
	}
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	return scanDocument(payload)
}

func (r Repo) GetDocumentTx(ctx context.Context, tx *sql.Tx, slot string) (domain.DocumentDraft, error) {
	var payload string
	err := tx.QueryRowContext(ctx, `SELECT payload_json FROM documents WHERE slot=?`, slot).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.DocumentDraft{}, ErrNotFound
	}
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	return scanDocument(payload)
}

// DeleteWorkspace clears all workspace state. Events survive as the audit
// trail.
func (r Repo) DeleteWorkspace(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"documents", "versions", "comments", "changes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) InsertVersion(ctx context.Context, tx *sql.Tx, slot string, v domain.Version) error {
	draft, err := json.Marshal(v.Draft)
	if err != nil {
		return fmt.Errorf("marshal version draft: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO versions(id,slot,ts,description,draft_json) VALUES (?,?,?,?,?)`,
		v.ID, slot, v.Timestamp, v.Description, string(draft))
	return err
}

func (r Repo) ListVersions(ctx context.Context, slot string) ([]domain.Version, error) {
	clauses := []string{"1=1"}
	var args []any
	if slot != "" {
		clauses = []string{"slot=?"}
		args = append(args, slot)
	}
	query := `SELECT id,ts,description,draft_json FROM versions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY ts DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Version
	for rows.Next() {
		var v domain.Version
		var draft string
		if err := rows.Scan(&v.ID, &v.Timestamp, &v.Description, &draft); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(draft), &v.Draft); err != nil {
			return nil, fmt.Errorf("unmarshal version draft: %w", err)
		}
		res = append(res, v)
	}
	return res, nil
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, slot string, c domain.Comment) error {
	replies, err := json.Marshal(c.Replies)
	if err != nil {
		return fmt.Errorf("marshal replies: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO comments(id,slot,section_id,content,author,ts,resolved,replies_json) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, slot, c.SectionID, c.Content, c.Author, c.Timestamp, boolInt(c.Resolved), string(replies))
	return err
}

func (r Repo) ListComments(ctx context.Context, slot string) ([]domain.Comment, error) {
	query := `SELECT id,section_id,content,author,ts,resolved,replies_json FROM comments`
	var args []any
	if slot != "" {
		query += ` WHERE slot=?`
		args = append(args, slot)
	}
	query += ` ORDER BY ts ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var resolved int
		var replies string
		if err := rows.Scan(&c.ID, &c.SectionID, &c.Content, &c.Author, &c.Timestamp, &resolved, &replies); err != nil {
			return nil, err
		}
		c.Resolved = resolved != 0
		if err := json.Unmarshal([]byte(replies), &c.Replies); err != nil {
			return nil, fmt.Errorf("unmarshal replies: %w", err)
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) ResolveComment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE comments SET resolved=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertChange(ctx context.Context, tx *sql.Tx, c domain.Change) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO changes(id,slot,section_id,before_text,after_text,author,ts,status) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Slot, c.SectionID, c.Before, c.After, c.Author, c.Timestamp, c.Status)
	return err
}

func scanChange(row *sql.Row) (domain.Change, error) {
	var c domain.Change
	err := row.Scan(&c.ID, &c.Slot, &c.SectionID, &c.Before, &c.After, &c.Author, &c.Timestamp, &c.Status)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetChange(ctx context.Context, id string) (domain.Change, error) {
	return scanChange(r.DB.QueryRowContext(ctx, `SELECT id,slot,section_id,before_text,after_text,author,ts,status FROM changes WHERE id=?`, id))
}

func (r Repo) GetChangeTx(ctx context.Context, tx *sql.Tx, id string) (domain.Change, error) {
	var c domain.Change
	err := tx.QueryRowContext(ctx, `SELECT id,slot,section_id,before_text,after_text,author,ts,status FROM changes WHERE id=?`, id).
		Scan(&c.ID, &c.Slot, &c.SectionID, &c.Before, &c.After, &c.Author, &c.Timestamp, &c.Status)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListChanges(ctx context.Context, slot, status string) ([]domain.Change, error) {
	var clauses []string
	var args []any
	if slot != "" {
		clauses = append(clauses, "slot=?")
		args = append(args, slot)
	}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,slot,section_id,before_text,after_text,author,ts,status FROM changes ` + where + ` ORDER BY ts ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Change
	for rows.Next() {
		var c domain.Change
		if err := rows.Scan(&c.ID, &c.Slot, &c.SectionID, &c.Before, &c.After, &c.Author, &c.Timestamp, &c.Status); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateChangeStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE changes SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
