package library

import "time"

// Document is a PDF shared with a building (rules, minutes, contracts).
type Document struct {
	ID         int64     `json:"id" db:"id"`
	BuildingID int64     `json:"buildingId" db:"building_id"`
	Name       string    `json:"name" db:"name"`
	Category   string    `json:"category" db:"category"`
	FileName   string    `json:"fileName" db:"file_name"`
	ObjectKey  string    `json:"-" db:"object_key"`
	URL        string    `json:"url,omitempty" db:"-"`
	Size       int64     `json:"size" db:"size_bytes"`
	UploadedBy int64     `json:"uploadedBy" db:"uploaded_by"`
	UploadedAt time.Time `json:"uploadDate" db:"uploaded_at"`
}
