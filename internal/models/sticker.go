package models

import "time"

type StickerTier string

const (
	StickerFree StickerTier = "free"
	StickerPro  StickerTier = "pro"
	StickerVIP  StickerTier = "vip"
)

type Sticker struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Category  string      `json:"category" db:"category"`
	Image     string      `json:"image" db:"image"`
	Tier      StickerTier `json:"type" db:"tier"`
	File      string      `json:"file" db:"file"`
	Duration  float64     `json:"duration" db:"duration"`
	VIPLevel  int         `json:"vipLevel" db:"vip_level"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// StickerCategory groups stickers for the picker.
type StickerCategory struct {
	Category string    `json:"category"`
	Stickers []Sticker `json:"stickers"`
}

// GroupStickers keeps the order in which categories first appear.
func GroupStickers(stickers []Sticker) []StickerCategory {
	out := []StickerCategory{}
	index := map[string]int{}
	for _, s := range stickers {
		i, ok := index[s.Category]
		if !ok {
			i = len(out)
			index[s.Category] = i
			out = append(out, StickerCategory{Category: s.Category})
		}
		out[i].Stickers = append(out[i].Stickers, s)
	}
	return out
}
