package forum

import "time"

// DefaultCategories are seeded on first use.
var DefaultCategories = []string{"General", "Anuncios", "Mantención", "Seguridad", "Eventos"}

// Category groups threads.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Thread is a forum post with its body.
type Thread struct {
	ID         int64     `json:"id" db:"id"`
	BuildingID int64     `json:"buildingId" db:"building_id"`
	AuthorID   int64     `json:"authorId" db:"author_id"`
	AuthorName string    `json:"authorName,omitempty" db:"author_name"`
	CategoryID int64     `json:"categoryId" db:"category_id"`
	Category   string    `json:"category" db:"category"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	Pinned     bool      `json:"pinned" db:"pinned"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
