package model

import "time"

// Box is a tracked physical storage container. QRCode is the printed payload
// that resolves back to this record; it changes only on reissue.
type Box struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	LocationID      *string   `json:"location_id"`
	QRCode          string    `json:"qr_code"`
	PrimaryImageURL string    `json:"primary_image_url,omitempty"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Joined from locations when listed or looked up.
	LocationName string `json:"location_name,omitempty"`
}
