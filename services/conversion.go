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

type ConversionService struct {
	appServices.DefaultService

	nowFn func() time.Time

	sqlSvc *PostgresService
}

const CONVERSION_SVC = "conversion_svc"

func (svc ConversionService) Id() string {
	return CONVERSION_SVC
}

func (svc *ConversionService) Configure(ctx *appContext.Context) error {
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *ConversionService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// RecordConversion stores the conversion row then bumps the owning link's
// conversion counters. Same two-phase shape as click recording, same
// accepted drift window between the writes.
func (svc *ConversionService) RecordConversion(req dto.RecordConversionRequest) (*model.Conversion, error) {
	link, err := svc.sqlSvc.GetLinkByHash(req.LinkHash)
	if err != nil {
		return nil, shared.LinkUnavailableError()
	}

	conversion := &model.Conversion{
		ID:         uuid.New().String(),
		UserID:     link.UserID,
		LinkHash:   link.Hash,
		TrackingID: req.TrackingID,
		Revenue:    req.Revenue,
		Status:     "pending",
		CreatedAt:  svc.nowFn(),
	}

	if err := svc.sqlSvc.CreateConversion(conversion); err != nil {
		return nil, err
	}

	if err := svc.sqlSvc.IncrementLinkConversion(link.Hash, req.Revenue); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"conversion_id": conversion.ID,
			"link_hash":     link.Hash,
			"phase":         "link_increment",
		}).Error("Conversion counter increment failed, counters now under-report")
	}

	return conversion, nil
}
