package services

import (
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	"github.com/google/uuid"
	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/model"
	"github.com/jenz26/afflyt/shared"
	"github.com/mileusna/useragent"
	log "github.com/sirupsen/logrus"
)

// UniqueClickWindow is the trailing interval inside which repeat clicks from
// the same IP on the same link classify as non-unique. Independent of the
// rate limiter's window.
const UniqueClickWindow = 24 * time.Hour

// clickStore is the durable-store surface ClickService needs.
type clickStore interface {
	GetLinkByHash(hash string) (*model.AffiliateLink, error)
	CreateClickEvent(event *model.ClickEvent) error
	IncrementLinkClicks(hash string, unique bool) error
	IncrementChannelClicks(id string, unique bool) error
	CountClicksByIPAndHashSince(ip, hash string, since time.Time) (int64, error)
}

// UniquenessOracle classifies a click as unique or repeat. The production
// implementation is a check-then-insert over the click store with no
// transaction around it: two concurrent clicks from one IP can both classify
// unique. Downstream analytics assume exactly this definition, a stricter
// storage-transaction-backed oracle can be swapped in here without touching
// callers.
type UniquenessOracle interface {
	IsUnique(linkHash, ip string, at time.Time) (bool, error)
}

type ipWindowOracle struct {
	store  clickStore
	window time.Duration
}

func newIPWindowOracle(store clickStore, window time.Duration) *ipWindowOracle {
	return &ipWindowOracle{store: store, window: window}
}

func (o *ipWindowOracle) IsUnique(linkHash, ip string, at time.Time) (bool, error) {
	count, err := o.store.CountClicksByIPAndHashSince(ip, linkHash, at.Add(-o.window))
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

type ClickService struct {
	appServices.DefaultService

	store  clickStore
	oracle UniquenessOracle
	nowFn  func() time.Time

	sqlSvc    *PostgresService
	geoSvc    *GeolocationService
	statusSvc *MonitoringService
}

const CLICK_SVC = "click_svc"

func (svc ClickService) Id() string {
	return CLICK_SVC
}

func (svc *ClickService) Configure(ctx *appContext.Context) error {
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *ClickService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.store = svc.sqlSvc
	svc.oracle = newIPWindowOracle(svc.store, UniqueClickWindow)
	if s := svc.Service(GEOLOCATION_SVC); s != nil {
		svc.geoSvc = s.(*GeolocationService)
	}
	if s := svc.Service(MONITORING_SVC); s != nil {
		svc.statusSvc = s.(*MonitoringService)
	}
	return nil
}

// RecordClick persists one click and rolls its counters into the owning link
// and channel. Event insert, link increment and channel increment are three
// separate writes with no cross-record transaction: a crash in between
// leaves counters under-reporting relative to stored events. Each phase is
// logged with the event id so drift is detectable out-of-band.
func (svc *ClickService) RecordClick(input dto.ClickInput) (*model.ClickEvent, error) {
	now := input.At
	if now.IsZero() {
		now = svc.nowFn()
	}

	link, err := svc.store.GetLinkByHash(input.LinkHash)
	if err != nil {
		return nil, shared.LinkUnavailableError()
	}
	if !link.Usable(now) {
		return nil, shared.LinkUnavailableError()
	}

	unique, err := svc.oracle.IsUnique(link.Hash, input.IP, now)
	if err != nil {
		// A broken oracle must not drop the click, classify as repeat.
		log.WithError(err).WithField("link_hash", link.Hash).Warn("Uniqueness check failed, classifying as non-unique")
		unique = false
	}

	event := &model.ClickEvent{
		ID:         uuid.New().String(),
		LinkHash:   link.Hash,
		UserID:     link.UserID,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
		Referer:    input.Referer,
		Country:    svc.resolveCountry(input.IP),
		IsUnique:   unique,
		SessionID:  input.SessionID,
		SubID:      input.SubID,
		TrackingID: input.TrackingID,
		CreatedAt:  now,
	}
	event.Device, event.Browser = classifyUserAgent(input.UserAgent)

	if err := svc.store.CreateClickEvent(event); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"event_id":  event.ID,
		"link_hash": link.Hash,
		"unique":    unique,
		"phase":     "event_persisted",
	}).Debug("Click recorded")

	if err := svc.store.IncrementLinkClicks(link.Hash, unique); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"event_id":  event.ID,
			"link_hash": link.Hash,
			"phase":     "link_increment",
		}).Error("Click counter increment failed, counters now under-report")
	}

	if link.ChannelID != nil && *link.ChannelID != "" {
		if err := svc.store.IncrementChannelClicks(*link.ChannelID, unique); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"event_id":   event.ID,
				"channel_id": *link.ChannelID,
				"phase":      "channel_increment",
			}).Error("Channel counter increment failed, counters now under-report")
		}
	}

	if svc.statusSvc != nil {
		svc.statusSvc.RecordClick(unique)
	}

	return event, nil
}

func (svc *ClickService) resolveCountry(ip string) string {
	if svc.geoSvc == nil {
		return ""
	}
	country, err := svc.geoSvc.GetCountryByIP(ip)
	if err != nil {
		return "Unknown"
	}
	return country
}

func classifyUserAgent(raw string) (device, browser string) {
	if raw == "" {
		return "unknown", ""
	}

	ua := useragent.Parse(raw)
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Desktop:
		device = "desktop"
	default:
		device = "unknown"
	}

	return device, ua.Name
}
