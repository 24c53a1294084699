package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jenz26/afflyt/model"
	"gorm.io/gorm"
)

// LinkSeeder creates a demo channel set and a handful of links under it.
type LinkSeeder struct {
	db      *gorm.DB
	ownerID string
}

func NewLinkSeeder(db *gorm.DB, ownerID string) *LinkSeeder {
	return &LinkSeeder{db: db, ownerID: ownerID}
}

var demoLinks = []struct {
	Hash           string
	DestinationURL string
	Channel        string
}{
	{"dem0link", "https://www.amazon.it/dp/B0C1EXAMPLE", "Telegram Deals"},
	{"dem0blog", "https://example.org/reviews/headphones", "Blog"},
	{"dem0promo", "https://example.com/store/promo", "Telegram Deals"},
	{"dem0sale", "https://example.com/store/clearance", ""},
}

func (s *LinkSeeder) Seed() ([]model.AffiliateLink, error) {
	now := time.Now()

	channels := map[string]string{}
	for _, demo := range demoLinks {
		if demo.Channel == "" {
			continue
		}
		if _, ok := channels[demo.Channel]; ok {
			continue
		}

		var existing model.Channel
		err := s.db.Where("user_id = ? AND name = ?", s.ownerID, demo.Channel).First(&existing).Error
		if err == nil {
			channels[demo.Channel] = existing.ID
			continue
		}

		channel := model.Channel{
			ID:        uuid.New().String(),
			UserID:    s.ownerID,
			Name:      demo.Channel,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.Create(&channel).Error; err != nil {
			return nil, err
		}
		channels[demo.Channel] = channel.ID
		log.Printf("Created channel: %s", channel.Name)
	}

	links := make([]model.AffiliateLink, 0, len(demoLinks))
	for _, demo := range demoLinks {
		var existing model.AffiliateLink
		err := s.db.Where("hash = ?", demo.Hash).First(&existing).Error
		if err == nil {
			links = append(links, existing)
			continue
		}

		link := model.AffiliateLink{
			ID:             uuid.New().String(),
			Hash:           demo.Hash,
			UserID:         s.ownerID,
			DestinationURL: demo.DestinationURL,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if channelID, ok := channels[demo.Channel]; ok {
			link.ChannelID = &channelID
		}

		if err := s.db.Create(&link).Error; err != nil {
			return nil, err
		}
		links = append(links, link)
		log.Printf("Created link: %s -> %s", link.Hash, link.DestinationURL)
	}

	return links, nil
}

func (s *LinkSeeder) ExistingLinks() ([]model.AffiliateLink, error) {
	var links []model.AffiliateLink
	err := s.db.Where("user_id = ?", s.ownerID).Find(&links).Error
	return links, err
}
