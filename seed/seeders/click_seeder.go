package seeders

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jenz26/afflyt/model"
	"gorm.io/gorm"
)

// ClickSeeder backfills two weeks of plausible click history so the
// analytics endpoints have something to chew on locally.
type ClickSeeder struct {
	db      *gorm.DB
	ownerID string
}

func NewClickSeeder(db *gorm.DB, ownerID string) *ClickSeeder {
	return &ClickSeeder{db: db, ownerID: ownerID}
}

var seedReferers = []string{
	"",
	"https://t.me/dealschannel",
	"https://www.instagram.com/stories",
	"https://www.google.com/search",
	"https://example-blog.org/post/42",
}

var seedCountries = []string{"Italy", "Germany", "France", "Spain", "Unknown"}
var seedDevices = []string{"mobile", "mobile", "desktop", "tablet"}

func (s *ClickSeeder) Seed(links []model.AffiliateLink) error {
	if len(links) == 0 {
		log.Println("No links to seed clicks for, skipping")
		return nil
	}

	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	total := 0

	for day := 14; day >= 0; day-- {
		clicksToday := 5 + rng.Intn(20)
		for i := 0; i < clicksToday; i++ {
			link := links[rng.Intn(len(links))]
			at := now.AddDate(0, 0, -day).Add(-time.Duration(rng.Intn(24)) * time.Hour)

			event := model.ClickEvent{
				ID:        uuid.New().String(),
				LinkHash:  link.Hash,
				UserID:    s.ownerID,
				IP:        fmt.Sprintf("10.0.%d.%d", rng.Intn(32), rng.Intn(255)),
				UserAgent: "Mozilla/5.0 (seeded)",
				Referer:   seedReferers[rng.Intn(len(seedReferers))],
				Country:   seedCountries[rng.Intn(len(seedCountries))],
				Device:    seedDevices[rng.Intn(len(seedDevices))],
				Browser:   "Chrome",
				IsUnique:  rng.Intn(3) > 0,
				CreatedAt: at,
			}

			if err := s.db.Create(&event).Error; err != nil {
				return err
			}

			updates := map[string]interface{}{
				"click_count": gorm.Expr("click_count + 1"),
			}
			if event.IsUnique {
				updates["unique_click_count"] = gorm.Expr("unique_click_count + 1")
			}
			if err := s.db.Model(&model.AffiliateLink{}).Where("hash = ?", link.Hash).Updates(updates).Error; err != nil {
				return err
			}

			total++
		}
	}

	log.Printf("Seeded %d click events", total)
	return nil
}
