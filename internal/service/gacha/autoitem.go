package gacha

import (
	"strings"

	"gacha-bot-backend/internal/domain/state"
)

// FileMeta describes an uploaded file an owner turns into an item.
type FileMeta struct {
	FileID   string
	FileName string
	Type     state.ItemType
	Size     int64
}

const (
	mb = 1024 * 1024
)

var rarityEmoji = map[state.Rarity]string{
	state.RarityLegendary: "💎",
	state.RarityEpic:      "🔥",
	state.RarityRare:      "⭐",
	state.RarityCommon:    "💧",
}

var typeEmoji = map[state.ItemType]string{
	state.ItemTypePhoto:    "🖼️",
	state.ItemTypeDocument: "📄",
	state.ItemTypeSticker:  "😊",
	state.ItemTypeVideo:    "🎥",
	state.ItemTypeAudio:    "🎵",
}

// AddItemFromFile derives name, rarity, weight and premium flag from the
// file metadata and appends the item with the next sequential id.
func (s *Service) AddItemFromFile(doc *state.Document, file FileMeta, addedBy int64) state.Item {
	rarity := RarityForFile(file.Size, file.Type)

	item := state.Item{
		ID:          len(doc.Items) + 1,
		Name:        rarityEmoji[rarity] + " " + ItemNameFromFile(file.FileName, file.Type),
		Rarity:      rarity,
		Probability: s.probabilityFor(rarity),
		Type:        file.Type,
		FileID:      file.FileID,
		PremiumOnly: s.premiumHeuristic(file),
		AddedAt:     s.now(),
		AddedBy:     addedBy,
	}
	doc.Items = append(doc.Items, item)
	return item
}

// ItemNameFromFile titles the bare filename and prefixes a type emoji.
func ItemNameFromFile(filename string, fileType state.ItemType) string {
	name := filename
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	name = strings.Join(words, " ")

	emoji, ok := typeEmoji[fileType]
	if !ok {
		emoji = "📁"
	}
	return emoji + " " + name
}

// RarityForFile scores the file by size and type; bigger and richer
// media lands in higher tiers.
func RarityForFile(size int64, fileType state.ItemType) state.Rarity {
	score := 0

	switch {
	case size > 10*mb:
		score += 3
	case size > 5*mb:
		score += 2
	case size > 1*mb:
		score++
	}

	switch fileType {
	case state.ItemTypeSticker, state.ItemTypeVideo:
		score += 2
	case state.ItemTypeAudio:
		score++
	}

	switch {
	case score >= 4:
		return state.RarityLegendary
	case score >= 3:
		return state.RarityEpic
	case score >= 2:
		return state.RarityRare
	default:
		return state.RarityCommon
	}
}

// probabilityFor picks a weight in the rarity's band.
func (s *Service) probabilityFor(rarity state.Rarity) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch rarity {
	case state.RarityLegendary:
		return float64(s.rng.Intn(2) + 1) // 1-2
	case state.RarityEpic:
		return float64(s.rng.Intn(5) + 3) // 3-7
	case state.RarityRare:
		return float64(s.rng.Intn(10) + 8) // 8-17
	default:
		return float64(s.rng.Intn(30) + 20) // 20-49
	}
}

func (s *Service) premiumHeuristic(file FileMeta) bool {
	if file.Size > 5*mb {
		return true
	}
	if file.Type == state.ItemTypeVideo || file.Type == state.ItemTypeSticker {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < 0.3
}
