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

// fakeLinkStore enforces hash uniqueness the way the database's unique
// constraint would.
type fakeLinkStore struct {
	mutex   sync.Mutex
	byHash  map[string]*model.AffiliateLink
	failAll bool
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{byHash: make(map[string]*model.AffiliateLink)}
}

func (s *fakeLinkStore) CreateLink(link *model.AffiliateLink) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.failAll {
		return gorm.ErrDuplicatedKey
	}
	if _, exists := s.byHash[link.Hash]; exists {
		return gorm.ErrDuplicatedKey
	}
	s.byHash[link.Hash] = link
	return nil
}

func (s *fakeLinkStore) GetLinkByHash(hash string) (*model.AffiliateLink, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	link, ok := s.byHash[hash]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return link, nil
}

func (s *fakeLinkStore) ListLinksByUser(userID string, limit, offset int) ([]model.AffiliateLink, int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var links []model.AffiliateLink
	for _, link := range s.byHash {
		if link.UserID == userID {
			links = append(links, *link)
		}
	}
	return links, int64(len(links)), nil
}

func (s *fakeLinkStore) DeactivateLink(userID, hash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	link, ok := s.byHash[hash]
	if !ok || link.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	link.IsActive = false
	return nil
}

func newTestLinkService(store linkStore) *LinkService {
	return &LinkService{
		store: store,
		hash:  NewHashGenerator(),
		nowFn: time.Now,
	}
}

func TestCreateLinkAssignsHash(t *testing.T) {
	store := newFakeLinkStore()
	svc := newTestLinkService(store)

	link, err := svc.CreateLink("user-1", dto.CreateLinkRequest{DestinationURL: "https://example.org/product"})
	require.NoError(t, err)

	assert.Len(t, link.Hash, LinkHashLength)
	assert.True(t, link.IsActive)
	assert.Equal(t, "user-1", link.UserID)
	assert.Zero(t, link.ClickCount)
}

func TestCreateLinkExhaustsRetryBudget(t *testing.T) {
	store := newFakeLinkStore()
	store.failAll = true
	svc := newTestLinkService(store)

	link, err := svc.CreateLink("user-1", dto.CreateLinkRequest{DestinationURL: "https://example.org"})
	require.Error(t, err)
	assert.Nil(t, link)
	assert.True(t, errors.Is(err, shared.ErrHashExhausted))

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestCreateLinkNonDuplicateErrorSurfaces(t *testing.T) {
	svc := newTestLinkService(erroringLinkStore{})

	_, err := svc.CreateLink("user-1", dto.CreateLinkRequest{DestinationURL: "https://example.org"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrHashExhausted))
}

type erroringLinkStore struct{}

func (erroringLinkStore) CreateLink(*model.AffiliateLink) error {
	return errors.New("connection reset")
}
func (erroringLinkStore) GetLinkByHash(string) (*model.AffiliateLink, error) {
	return nil, errors.New("connection reset")
}
func (erroringLinkStore) ListLinksByUser(string, int, int) ([]model.AffiliateLink, int64, error) {
	return nil, 0, errors.New("connection reset")
}
func (erroringLinkStore) DeactivateLink(string, string) error { return errors.New("connection reset") }

func TestConcurrentCreationsYieldDistinctHashes(t *testing.T) {
	store := newFakeLinkStore()
	svc := newTestLinkService(store)

	const n = 64

	var wg sync.WaitGroup
	results := make(chan *model.AffiliateLink, n)
	failures := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := svc.CreateLink("user-1", dto.CreateLinkRequest{DestinationURL: "https://example.org"})
			if err != nil {
				failures <- err
				return
			}
			results <- link
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	seen := make(map[string]bool)
	for link := range results {
		assert.False(t, seen[link.Hash], "hash %s assigned twice", link.Hash)
		seen[link.Hash] = true
	}

	// Any failure must be the bounded exhaustion error, nothing else.
	for err := range failures {
		assert.True(t, errors.Is(err, shared.ErrHashExhausted))
	}
}
