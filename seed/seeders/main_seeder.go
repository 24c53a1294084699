package seeders

import (
	"log"

	"gorm.io/gorm"
)

// MainSeeder orchestrates the individual seeders.
type MainSeeder struct {
	db      *gorm.DB
	ownerID string

	linkSeeder  *LinkSeeder
	clickSeeder *ClickSeeder
}

func NewMainSeeder(db *gorm.DB, ownerID string) *MainSeeder {
	return &MainSeeder{
		db:          db,
		ownerID:     ownerID,
		linkSeeder:  NewLinkSeeder(db, ownerID),
		clickSeeder: NewClickSeeder(db, ownerID),
	}
}

func (s *MainSeeder) SeedAll() error {
	log.Println("Seeding channels and links...")
	links, err := s.linkSeeder.Seed()
	if err != nil {
		return err
	}

	log.Println("Seeding click history...")
	if err := s.clickSeeder.Seed(links); err != nil {
		return err
	}

	return nil
}

func (s *MainSeeder) SeedLinksOnly() error {
	_, err := s.linkSeeder.Seed()
	return err
}

func (s *MainSeeder) SeedClicksOnly() error {
	links, err := s.linkSeeder.ExistingLinks()
	if err != nil {
		return err
	}
	return s.clickSeeder.Seed(links)
}
