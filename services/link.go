package services

import (
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	"github.com/google/uuid"
	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/model"
	"github.com/jenz26/afflyt/shared"
	log "github.com/sirupsen/logrus"
)

// linkStore is the durable-store surface LinkService needs. PostgresService
// implements it, tests plug in an in-memory fake.
type linkStore interface {
	CreateLink(link *model.AffiliateLink) error
	GetLinkByHash(hash string) (*model.AffiliateLink, error)
	ListLinksByUser(userID string, limit, offset int) ([]model.AffiliateLink, int64, error)
	DeactivateLink(userID, hash string) error
}

type LinkService struct {
	appServices.DefaultService

	store linkStore
	hash  *HashGenerator
	nowFn func() time.Time

	sqlSvc    *PostgresService
	statusSvc *MonitoringService
}

const LINK_SVC = "link_svc"

func (svc LinkService) Id() string {
	return LINK_SVC
}

func (svc *LinkService) Configure(ctx *appContext.Context) error {
	svc.hash = NewHashGenerator()
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *LinkService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.store = svc.sqlSvc
	if s := svc.Service(MONITORING_SVC); s != nil {
		svc.statusSvc = s.(*MonitoringService)
	}
	return nil
}

// CreateLink allocates a hash and inserts the link. The store's unique
// constraint is the collision detector: a duplicate-key error triggers a
// fresh candidate, bounded by MaxHashAttempts. Two concurrent creators can
// race on the same candidate, only one insert wins.
func (svc *LinkService) CreateLink(userID string, req dto.CreateLinkRequest) (*model.AffiliateLink, error) {
	now := svc.nowFn()

	for attempt := 1; attempt <= MaxHashAttempts; attempt++ {
		hash, err := svc.hash.Generate(LinkHashLength)
		if err != nil {
			return nil, err
		}

		link := &model.AffiliateLink{
			ID:             uuid.New().String(),
			Hash:           hash,
			UserID:         userID,
			DestinationURL: req.DestinationURL,
			ChannelID:      req.ChannelID,
			IsActive:       true,
			ExpiresAt:      req.ExpiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = svc.store.CreateLink(link)
		if err == nil {
			if svc.statusSvc != nil {
				svc.statusSvc.RecordLinkCreated(attempt)
			}
			return link, nil
		}

		if !IsDuplicateKeyError(err) {
			return nil, err
		}

		log.WithFields(log.Fields{
			"hash":    hash,
			"attempt": attempt,
		}).Warn("Link hash collision, regenerating")
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"attempts": MaxHashAttempts,
	}).Error("Hash generation retry budget exhausted")

	return nil, shared.HashExhaustedError()
}

func (svc *LinkService) GetLink(hash string) (*model.AffiliateLink, error) {
	return svc.store.GetLinkByHash(hash)
}

func (svc *LinkService) ListLinks(userID string, limit, offset int) ([]model.AffiliateLink, int64, error) {
	return svc.store.ListLinksByUser(userID, limit, offset)
}

func (svc *LinkService) DeactivateLink(userID, hash string) error {
	return svc.store.DeactivateLink(userID, hash)
}
