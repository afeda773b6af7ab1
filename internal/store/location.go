package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hud-code/binqr-server/internal/model"
)

type LocationStore struct {
	db *sql.DB
}

func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db}
}

func scanLocation(scanner interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	err := scanner.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Description, &l.BoxCount, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const locationCols = `l.id, l.owner_id, l.name, l.description,
	(SELECT COUNT(*) FROM boxes b WHERE b.location_id = l.id),
	l.created_at, l.updated_at`

// List returns the caller's locations, newest first, each with the number of
// boxes currently assigned to it.
func (s *LocationStore) List(ownerID string) ([]model.Location, error) {
	rows, err := s.db.Query(
		`SELECT `+locationCols+` FROM locations l WHERE l.owner_id = ? ORDER BY l.created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

func (s *LocationStore) GetByID(ownerID, id string) (*model.Location, error) {
	row := s.db.QueryRow(
		`SELECT `+locationCols+` FROM locations l WHERE l.id = ? AND l.owner_id = ?`,
		id, ownerID,
	)
	l, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

func (s *LocationStore) Create(ownerID, name, description string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("location name is required: %w", ErrValidation)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO locations (id, owner_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerID, name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return s.GetByID(ownerID, id)
}

// UpdateLocationParams carries the fields to change; nil means leave as is.
type UpdateLocationParams struct {
	Name        *string
	Description *string
}

func (s *LocationStore) Update(ownerID, id string, p UpdateLocationParams) (*model.Location, error) {
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
			return nil, fmt.Errorf("location name is required: %w", ErrValidation)
		}
	}
	description := existing.Description
	if p.Description != nil {
		description = *p.Description
	}

	_, err = s.db.Exec(
		`UPDATE locations SET name = ?, description = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		name, description, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	return s.GetByID(ownerID, id)
}

// Delete removes a location. It refuses with ErrConflict while any box still
// references the location; the caller must reassign those boxes first.
func (s *LocationStore) Delete(ownerID, id string) error {
	existing, err := s.GetByID(ownerID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	count, err := s.CountBoxes(ownerID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%d boxes still reference this location: %w", count, ErrConflict)
	}

	_, err = s.db.Exec(`DELETE FROM locations WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

func (s *LocationStore) CountBoxes(ownerID, locationID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM boxes WHERE location_id = ? AND owner_id = ?`,
		locationID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count boxes at location: %w", err)
	}
	return count, nil
}
