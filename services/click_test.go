package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/model"
	"github.com/jenz26/afflyt/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeClickStore keeps links, events and counters in memory and answers the
// uniqueness count the way the composite (ip, link_hash, created_at) index
// query would.
type fakeClickStore struct {
	mutex    sync.Mutex
	links    map[string]*model.AffiliateLink
	channels map[string]*model.Channel
	events   []model.ClickEvent

	countErr error
}

func newFakeClickStore() *fakeClickStore {
	return &fakeClickStore{
		links:    make(map[string]*model.AffiliateLink),
		channels: make(map[string]*model.Channel),
	}
}

func (s *fakeClickStore) addLink(link *model.AffiliateLink) {
	s.links[link.Hash] = link
}

func (s *fakeClickStore) GetLinkByHash(hash string) (*model.AffiliateLink, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	link, ok := s.links[hash]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return link, nil
}

func (s *fakeClickStore) CreateClickEvent(event *model.ClickEvent) error {
	s.mutex.Lock()
	s.events = append(s.events, *event)
	s.mutex.Unlock()
	return nil
}

func (s *fakeClickStore) IncrementLinkClicks(hash string, unique bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	link, ok := s.links[hash]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	link.ClickCount++
	if unique {
		link.UniqueClickCount++
	}
	return nil
}

func (s *fakeClickStore) IncrementChannelClicks(id string, unique bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	channel, ok := s.channels[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	channel.ClickCount++
	if unique {
		channel.UniqueClickCount++
	}
	return nil
}

func (s *fakeClickStore) CountClicksByIPAndHashSince(ip, hash string, since time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.countErr != nil {
		return 0, s.countErr
	}

	var count int64
	for _, event := range s.events {
		if event.IP == ip && event.LinkHash == hash && !event.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func newTestClickService(store *fakeClickStore) *ClickService {
	return &ClickService{
		store:  store,
		oracle: newIPWindowOracle(store, UniqueClickWindow),
		nowFn:  time.Now,
	}
}

func activeLink(hash, userID string) *model.AffiliateLink {
	return &model.AffiliateLink{
		ID:             "link-" + hash,
		Hash:           hash,
		UserID:         userID,
		DestinationURL: "https://example.org",
		IsActive:       true,
	}
}

func TestRecordClickUniquenessWindow(t *testing.T) {
	store := newFakeClickStore()
	store.addLink(activeLink("abc123", "user-1"))
	svc := newTestClickService(store)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	input := dto.ClickInput{LinkHash: "abc123", IP: "1.2.3.4", UserAgent: "curl/8.0"}

	// First click from this IP is unique.
	input.At = t0
	event, err := svc.RecordClick(input)
	require.NoError(t, err)
	assert.True(t, event.IsUnique)

	// 23h later: the first event still sits inside the trailing 24h.
	input.At = t0.Add(23 * time.Hour)
	event, err = svc.RecordClick(input)
	require.NoError(t, err)
	assert.False(t, event.IsUnique)

	// 25h after the first click the first event has aged out, but the
	// second (2h ago) is inside this click's own trailing 24h.
	input.At = t0.Add(25 * time.Hour)
	event, err = svc.RecordClick(input)
	require.NoError(t, err)
	assert.False(t, event.IsUnique)

	// 50h: no event within the trailing 24h, unique again.
	input.At = t0.Add(50 * time.Hour)
	event, err = svc.RecordClick(input)
	require.NoError(t, err)
	assert.True(t, event.IsUnique)

	link := store.links["abc123"]
	assert.Equal(t, int64(4), link.ClickCount)
	assert.Equal(t, int64(2), link.UniqueClickCount)
}

func TestRecordClickDifferentIPsAreIndependent(t *testing.T) {
	store := newFakeClickStore()
	store.addLink(activeLink("abc123", "user-1"))
	svc := newTestClickService(store)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	event, err := svc.RecordClick(dto.ClickInput{LinkHash: "abc123", IP: "1.2.3.4", At: t0})
	require.NoError(t, err)
	assert.True(t, event.IsUnique)

	event, err = svc.RecordClick(dto.ClickInput{LinkHash: "abc123", IP: "5.6.7.8", At: t0})
	require.NoError(t, err)
	assert.True(t, event.IsUnique)
}

func TestRecordClickRejectsUnavailableLinks(t *testing.T) {
	store := newFakeClickStore()

	inactive := activeLink("gone1234", "user-1")
	inactive.IsActive = false
	store.addLink(inactive)

	expired := activeLink("old12345", "user-1")
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	store.addLink(expired)

	svc := newTestClickService(store)

	for _, hash := range []string{"missing1", "gone1234", "old12345"} {
		_, err := svc.RecordClick(dto.ClickInput{LinkHash: hash, IP: "1.2.3.4"})
		require.Error(t, err, "hash %s", hash)
		assert.True(t, errors.Is(err, shared.ErrLinkUnavailable), "hash %s", hash)
	}

	// No partial state: nothing was persisted for any rejected click.
	assert.Empty(t, store.events)
	assert.Zero(t, store.links["gone1234"].ClickCount)
}

func TestRecordClickOracleFailureClassifiesNonUnique(t *testing.T) {
	store := newFakeClickStore()
	store.addLink(activeLink("abc123", "user-1"))
	store.countErr = errors.New("query timeout")
	svc := newTestClickService(store)

	event, err := svc.RecordClick(dto.ClickInput{LinkHash: "abc123", IP: "1.2.3.4"})
	require.NoError(t, err, "a broken oracle must not drop the click")
	assert.False(t, event.IsUnique)
}

func TestRecordClickRollsUpChannelCounters(t *testing.T) {
	store := newFakeClickStore()
	channelID := "channel-1"
	store.channels[channelID] = &model.Channel{ID: channelID, UserID: "user-1", Name: "Telegram Deals"}

	link := activeLink("abc123", "user-1")
	link.ChannelID = &channelID
	store.addLink(link)

	svc := newTestClickService(store)

	_, err := svc.RecordClick(dto.ClickInput{LinkHash: "abc123", IP: "1.2.3.4"})
	require.NoError(t, err)

	channel := store.channels[channelID]
	assert.Equal(t, int64(1), channel.ClickCount)
	assert.Equal(t, int64(1), channel.UniqueClickCount)
}

func TestClassifyUserAgent(t *testing.T) {
	device, browser := classifyUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	assert.Equal(t, "mobile", device)
	assert.Equal(t, "Safari", browser)

	device, _ = classifyUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	assert.Equal(t, "desktop", device)

	device, _ = classifyUserAgent("Googlebot/2.1 (+http://www.google.com/bot.html)")
	assert.Equal(t, "bot", device)

	device, browser = classifyUserAgent("")
	assert.Equal(t, "unknown", device)
	assert.Empty(t, browser)
}
