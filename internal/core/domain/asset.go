package domain

import "time"

type Asset struct {
	ID          string      `json:"id"`
	DiagramID   string      `json:"diagram_id"`
	Tag         string      `json:"tag"`
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
	Verified    bool        `json:"verified"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ExtractedAsset is a validated model result that is not yet attached to a
// diagram.
type ExtractedAsset struct {
	Tag         string      `json:"tag"`
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
}
