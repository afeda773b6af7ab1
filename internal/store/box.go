package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/qr"
)

type BoxStore struct {
	db *sql.DB
}

func NewBoxStore(db *sql.DB) *BoxStore {
	return &BoxStore{db: db}
}

func scanBox(scanner interface{ Scan(...any) error }) (*model.Box, error) {
	var b model.Box
	var locationID, locationName sql.NullString

	err := scanner.Scan(
		&b.ID, &b.OwnerID, &b.Name, &b.Description, &locationID,
		&b.QRCode, &b.PrimaryImageURL, &b.CreatedAt, &b.UpdatedAt, &locationName,
	)
	if err != nil {
		return nil, err
	}

	if locationID.Valid {
		b.LocationID = &locationID.String
	}
	if locationName.Valid {
		b.LocationName = locationName.String
	}
	b.Tags = []string{}
	return &b, nil
}

const boxCols = `b.id, b.owner_id, b.name, b.description, b.location_id,
	b.qr_code, b.primary_image_url, b.created_at, b.updated_at, l.name`

const boxFrom = ` FROM boxes b LEFT JOIN locations l ON l.id = b.location_id`

// List returns the caller's boxes joined with their location name and tag
// list, most recently updated first.
func (s *BoxStore) List(ownerID string) ([]model.Box, error) {
	rows, err := s.db.Query(
		`SELECT `+boxCols+boxFrom+` WHERE b.owner_id = ? ORDER BY b.updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	defer rows.Close()

	boxes, err := collectBoxes(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ownerID, boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func collectBoxes(rows *sql.Rows) ([]model.Box, error) {
	var boxes []model.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		boxes = append(boxes, *b)
	}
	return boxes, rows.Err()
}

// attachTags loads all tag rows for the owner in one query and distributes
// them onto the given boxes.
func (s *BoxStore) attachTags(ownerID string, boxes []model.Box) error {
	if len(boxes) == 0 {
		return nil
	}

	rows, err := s.db.Query(
		`SELECT t.box_id, t.content FROM box_tags t
		 JOIN boxes b ON b.id = t.box_id WHERE b.owner_id = ? ORDER BY t.id ASC`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tagsByBox := make(map[string][]string)
	for rows.Next() {
		var boxID, content string
		if err := rows.Scan(&boxID, &content); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		tagsByBox[boxID] = append(tagsByBox[boxID], content)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range boxes {
		if tags, ok := tagsByBox[boxes[i].ID]; ok {
			boxes[i].Tags = tags
		}
	}
	return nil
}

func (s *BoxStore) loadTags(boxID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT content FROM box_tags WHERE box_id = ? ORDER BY id ASC`, boxID)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, content)
	}
	return tags, rows.Err()
}

func (s *BoxStore) GetByID(ownerID, id string) (*model.Box, error) {
	row := s.db.QueryRow(
		`SELECT `+boxCols+boxFrom+` WHERE b.id = ? AND b.owner_id = ?`,
		id, ownerID,
	)
	b, err := scanBox(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get box: %w", err)
	}
	b.Tags, err = s.loadTags(b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBoxParams carries a new box. ID and QRCode are supplied by the
// caller so the printed payload and the persisted id are established
// together; the store never invents either.
type CreateBoxParams struct {
	ID              string
	Name            string
	Description     string
	LocationID      *string
	QRCode          string
	PrimaryImageURL string
	Tags            []string
}

// Create inserts the box row, then its tag rows. If a tag insert fails after
// the box row is committed, the box is kept with an empty tag set and the
// box is returned together with ErrTagsPartial; nothing is rolled back.
func (s *BoxStore) Create(ownerID string, p CreateBoxParams) (*model.Box, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("box name is required: %w", ErrValidation)
	}
	if p.ID == "" || p.QRCode == "" {
		return nil, fmt.Errorf("box id and qr code are required: %w", ErrValidation)
	}
	if err := s.checkLocationOwned(ownerID, p.LocationID); err != nil {
		return nil, err
	}

	var locationID sql.NullString
	if p.LocationID != nil {
		locationID = sql.NullString{String: *p.LocationID, Valid: true}
	}
	now := time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO boxes (id, owner_id, name, description, location_id, qr_code, primary_image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, ownerID, p.Name, p.Description, locationID, p.QRCode, p.PrimaryImageURL, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert box: %w", err)
	}

	if err := s.insertTags(p.ID, p.Tags); err != nil {
		box, getErr := s.GetByID(ownerID, p.ID)
		if getErr != nil {
			return nil, getErr
		}
		return box, fmt.Errorf("%w: %v", ErrTagsPartial, err)
	}

	return s.GetByID(ownerID, p.ID)
}

func (s *BoxStore) insertTags(boxID string, tags []string) error {
	for _, tag := range tags {
		if _, err := s.db.Exec(`INSERT INTO box_tags (box_id, content) VALUES (?, ?)`, boxID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// UpdateBoxParams carries the fields to change; nil means leave as is. An
// empty LocationID clears the assignment (needed to vacate a location before
// deleting it). Tags, when set, replace the whole list.
type UpdateBoxParams struct {
	Name            *string
	Description     *string
	LocationID      *string
	PrimaryImageURL *string
	Tags            *[]string
}

// Update applies partial changes. Tag updates are full replacement: every
// existing tag row is deleted and the new set inserted. This is a contract,
// not an accident; it avoids orphaned tag rows at the cost of extra writes.
func (s *BoxStore) Update(ownerID, id string, p UpdateBoxParams) (*model.Box, error) {
	existing, err := s.GetByID(ownerID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	name := existing.Name
	if p.Name != nil {
		name = strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("box name is required: %w", ErrValidation)
		}
	}
	description := existing.Description
	if p.Description != nil {
		description = *p.Description
	}
	imageURL := existing.PrimaryImageURL
	if p.PrimaryImageURL != nil {
		imageURL = *p.PrimaryImageURL
	}

	var locationID sql.NullString
	if existing.LocationID != nil {
		locationID = sql.NullString{String: *existing.LocationID, Valid: true}
	}
	if p.LocationID != nil {
		if *p.LocationID == "" {
			locationID = sql.NullString{}
		} else {
			if err := s.checkLocationOwned(ownerID, p.LocationID); err != nil {
				return nil, err
			}
			locationID = sql.NullString{String: *p.LocationID, Valid: true}
		}
	}

	_, err = s.db.Exec(
		`UPDATE boxes SET name = ?, description = ?, location_id = ?, primary_image_url = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		name, description, locationID, imageURL, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update box: %w", err)
	}

	if p.Tags != nil {
		if _, err := s.db.Exec(`DELETE FROM box_tags WHERE box_id = ?`, id); err != nil {
			return nil, fmt.Errorf("clear tags: %w", err)
		}
		if err := s.insertTags(id, *p.Tags); err != nil {
			box, getErr := s.GetByID(ownerID, id)
			if getErr != nil {
				return nil, getErr
			}
			return box, fmt.Errorf("%w: %v", ErrTagsPartial, err)
		}
	}

	return s.GetByID(ownerID, id)
}

// Delete removes a box and, through the foreign key, its tag rows.
// Irreversible.
func (s *BoxStore) Delete(ownerID, id string) error {
	existing, err := s.GetByID(ownerID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	_, err = s.db.Exec(`DELETE FROM boxes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete box: %w", err)
	}
	return nil
}

// FindByQRCode resolves a printed payload to the caller's box by exact
// match. A syntactically valid but unmatched code returns (nil, nil), not an
// error.
func (s *BoxStore) FindByQRCode(ownerID, code string) (*model.Box, error) {
	row := s.db.QueryRow(
		`SELECT `+boxCols+boxFrom+` WHERE b.qr_code = ? AND b.owner_id = ?`,
		code, ownerID,
	)
	b, err := scanBox(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find box by qr code: %w", err)
	}
	b.Tags, err = s.loadTags(b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ReissueQRCode regenerates a box's printed code with a fresh nonce and
// persists it. The previous code stops resolving the moment this returns.
func (s *BoxStore) ReissueQRCode(ownerID, boxID string) (string, error) {
	existing, err := s.GetByID(ownerID, boxID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", ErrNotFound
	}

	newCode := qr.EncodeWithNonce(boxID, qr.NewNonce())
	_, err = s.db.Exec(
		`UPDATE boxes SET qr_code = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		newCode, time.Now().UTC(), boxID, ownerID,
	)
	if err != nil {
		return "", fmt.Errorf("reissue qr code: %w", err)
	}
	return newCode, nil
}

// Search narrows the caller's boxes by location and free text. The location
// filter is skipped for the sentinel "all" (or empty); a non-blank query is
// matched case-insensitively as a substring against name or description.
// Tags are not searched. Ordering is always updated_at descending.
func (s *BoxStore) Search(ownerID, query, locationID string) ([]model.Box, error) {
	sqlQuery := `SELECT ` + boxCols + boxFrom + ` WHERE b.owner_id = ?`
	args := []any{ownerID}

	if locationID != "" && locationID != "all" {
		sqlQuery += ` AND b.location_id = ?`
		args = append(args, locationID)
	}
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		sqlQuery += ` AND (LOWER(b.name) LIKE ? OR LOWER(b.description) LIKE ?)`
		args = append(args, pattern, pattern)
	}
	sqlQuery += ` ORDER BY b.updated_at DESC`

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search boxes: %w", err)
	}
	defer rows.Close()

	boxes, err := collectBoxes(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ownerID, boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func (s *BoxStore) checkLocationOwned(ownerID string, locationID *string) error {
	if locationID == nil {
		return nil
	}
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM locations WHERE id = ? AND owner_id = ?`,
		*locationID, ownerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check location: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("location %s: %w", *locationID, ErrNotFound)
	}
	return nil
}
