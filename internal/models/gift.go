package models

// Gift is the catalog entry a stranger gift points at.
type Gift struct {
	ID       string      `json:"id" db:"id"`
	Name     string      `json:"name" db:"name"`
	Price    int64       `json:"price" db:"price"`
	Image    string      `json:"image" db:"image"`
	File     string      `json:"file" db:"file"`
	Duration float64     `json:"duration" db:"duration"`
	Tier     StickerTier `json:"type" db:"tier"`
}
