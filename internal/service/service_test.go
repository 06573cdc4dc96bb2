package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/session"
	"github.com/abgdnv/catalog/internal/state"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]catalog.Product)
	return products, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "1", Name: "Runner", Category: "shoes", Company: "nike", Colors: []string{"red"}, Price: 5000, Shipping: true},
		{ID: "2", Name: "Tee", Category: "shirt", Company: "adidas", Colors: []string{"blue"}, Price: 2000},
		{ID: "3", Name: "Trail Runner", Category: "shoes", Company: "adidas", Colors: []string{"red", "black"}, Price: 8000},
	}
}

func newTestService(t *testing.T, src *mockSource, pub messaging.Publisher, window time.Duration) *Service {
	t.Helper()
	manager := session.NewManager(session.Config{DebounceWindow: window, TTL: time.Hour}, discard)
	t.Cleanup(manager.Close)
	return NewService(src, manager, pub, Options{FetchTimeout: time.Second, MemoSize: 8}, discard)
}

func loadedService(t *testing.T, window time.Duration) *Service {
	t.Helper()
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Return(testProducts(), nil)
	svc := newTestService(t, src, nil, window)
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	return svc
}

func Test_Service_Reload(t *testing.T) {
	fetchErr := errors.New("upstream down")
	testCases := []struct {
		name        string
		products    []catalog.Product
		fetchErr    error
		expectError error
		expected    *CatalogDto
	}{
		{
			name:     "Success - catalog installed",
			products: testProducts(),
			expected: &CatalogDto{
				Products:     3,
				MaxPrice:     8000,
				PriceCeiling: 8000 + session.PriceCeilingPadding,
				Facets: catalog.Facets{
					Categories: []string{"shoes", "shirt"},
					Companies:  []string{"nike", "adidas"},
					Colors:     []string{"red", "blue", "black"},
				},
			},
		},
		{
			name:     "Success - empty collection",
			products: []catalog.Product{},
			expected: &CatalogDto{
				PriceCeiling: session.PriceCeilingPadding,
				Facets:       catalog.Facets{Categories: []string{}, Companies: []string{}, Colors: []string{}},
			},
		},
		{
			name:        "Error - fetch fails",
			fetchErr:    fetchErr,
			expectError: fetchErr,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			src := new(mockSource)
			src.On("Fetch", mock.Anything).Return(tc.products, tc.fetchErr).Once()
			pub := new(mockPublisher)
			if tc.expectError == nil {
				pub.On("Publish", mock.Anything, mock.AnythingOfType("events.CatalogReloadedEvent")).Return(nil).Once()
			}
			svc := newTestService(t, src, pub, 0)

			// when
			got, err := svc.Reload(context.Background())

			// then
			src.AssertExpectations(t)
			pub.AssertExpectations(t)
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				_, err = svc.Catalog(context.Background())
				assert.ErrorIs(t, err, cerrors.ErrCatalogUnavailable)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, got.Version)
			assert.False(t, got.LoadedAt.IsZero())
			got.Version, got.LoadedAt = 0, time.Time{}
			assert.Equal(t, tc.expected, got)

			select {
			case <-svc.Ready():
			default:
				t.Fatal("service should be ready after a successful load")
			}
		})
	}
}

func Test_Service_ReloadPublishesEvent(t *testing.T) {
	// given
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Return(testProducts(), nil)
	pub := new(mockPublisher)
	var published events.CatalogReloadedEvent
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).(events.CatalogReloadedEvent)
	}).Return(errors.New("broker down"))
	svc := newTestService(t, src, pub, 0)

	// when
	got, err := svc.Reload(context.Background())

	// then: a publish failure does not fail the reload
	require.NoError(t, err)
	assert.Equal(t, got.Version, published.Version)
	assert.Equal(t, 3, published.Products)
	assert.Equal(t, int64(8000), published.MaxPrice)
	assert.Equal(t, 2, published.Categories)
	assert.Equal(t, 3, published.Colors)
}

func Test_Service_ReloadFailureKeepsCatalog(t *testing.T) {
	// given
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Return(testProducts(), nil).Once()
	src.On("Fetch", mock.Anything).Return(nil, errors.New("timeout")).Once()
	svc := newTestService(t, src, nil, 0)
	first, err := svc.Reload(context.Background())
	require.NoError(t, err)

	// when
	_, err = svc.Reload(context.Background())

	// then
	require.Error(t, err)
	current, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Version, current.Version)
}

func Test_Service_ReadyAfterFirstSuccessfulLoad(t *testing.T) {
	// given
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	src.On("Fetch", mock.Anything).Return(testProducts(), nil).Once()
	svc := newTestService(t, src, nil, 0)

	// when
	_, err := svc.Reload(context.Background())

	// then
	require.Error(t, err)
	select {
	case <-svc.Ready():
		t.Fatal("service must not be ready after a failed load")
	default:
	}

	// when
	_, err = svc.Reload(context.Background())

	// then
	require.NoError(t, err)
	select {
	case <-svc.Ready():
	default:
		t.Fatal("service should be ready after a successful load")
	}
}

func Test_Service_ConcurrentReloadsShareFetch(t *testing.T) {
	// given
	release := make(chan struct{})
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Run(func(mock.Arguments) { <-release }).Return(testProducts(), nil).Once()
	svc := newTestService(t, src, nil, 0)

	// when
	var wg sync.WaitGroup
	versions := make([]uint64, 5)
	for i := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Reload(context.Background())
			if assert.NoError(t, err) {
				versions[i] = got.Version
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// then
	src.AssertNumberOfCalls(t, "Fetch", 1)
	for _, v := range versions {
		assert.Equal(t, versions[0], v)
	}
}

func Test_Service_Filter(t *testing.T) {
	svc := loadedService(t, 0)
	price := int64(5000)
	negative := int64(-1)

	testCases := []struct {
		name     string
		query    FilterQuery
		expected []string
	}{
		{name: "no criteria returns everything", query: FilterQuery{}, expected: []string{"1", "2", "3"}},
		{name: "category and company", query: FilterQuery{Category: "shoes", Company: "adidas"}, expected: []string{"3"}},
		{name: "search is case insensitive", query: FilterQuery{SearchName: "runner"}, expected: []string{"1", "3"}},
		{name: "price is inclusive", query: FilterQuery{Price: &price}, expected: []string{"1", "2"}},
		{name: "negative price matches nothing", query: FilterQuery{Price: &negative}, expected: []string{}},
		{name: "shipping only", query: FilterQuery{Shipping: true}, expected: []string{"1"}},
		{name: "color", query: FilterQuery{Color: "black"}, expected: []string{"3"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			got, err := svc.Filter(context.Background(), tc.query)
			// then
			require.NoError(t, err)
			ids := make([]string, 0, len(got.Products))
			for _, p := range got.Products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tc.expected, ids)
			assert.Equal(t, len(tc.expected), got.Total)
		})
	}
}

func Test_Service_FilterWithoutCatalog(t *testing.T) {
	svc := newTestService(t, new(mockSource), nil, 0)

	_, err := svc.Filter(context.Background(), FilterQuery{})

	assert.ErrorIs(t, err, cerrors.ErrCatalogUnavailable)
}

func Test_Service_SessionLifecycle(t *testing.T) {
	svc := loadedService(t, 0)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.StatusReady, created.Status)
	assert.Len(t, created.FilterProducts, 3)
	id := uuid.MustParse(created.ID)

	view, applied, err := svc.SetFilter(ctx, id, FilterDto{Type: "category", Value: "shoes"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "shoes", view.FilterInput.Category)
	assert.Len(t, view.FilterProducts, 2)

	view, err = svc.SetDisplay(ctx, id, DisplayDto{Display: "list"})
	require.NoError(t, err)
	assert.Equal(t, state.DisplayList, view.Display)

	view, err = svc.ClearFilter(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.DefaultFilters())
	assert.Equal(t, state.DisplayList, view.Display, "clearing filters keeps the layout")

	require.NoError(t, svc.DeleteSession(ctx, id))
	_, err = svc.View(ctx, id)
	assert.ErrorIs(t, err, cerrors.ErrSessionNotFound)
}

func Test_Service_SetFilterErrors(t *testing.T) {
	svc := loadedService(t, 0)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	testCases := []struct {
		name        string
		id          uuid.UUID
		filter      FilterDto
		expectError error
	}{
		{name: "unknown type", id: id, filter: FilterDto{Type: "size", Value: "xl"}, expectError: cerrors.ErrUnknownFilterType},
		{name: "malformed price", id: id, filter: FilterDto{Type: "price", Value: "cheap"}, expectError: cerrors.ErrInvalidFilterValue},
		{name: "non string category", id: id, filter: FilterDto{Type: "category", Value: 42}, expectError: cerrors.ErrInvalidFilterValue},
		{name: "unknown session", id: uuid.New(), filter: FilterDto{Type: "category", Value: "shoes"}, expectError: cerrors.ErrSessionNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.SetFilter(ctx, tc.id, tc.filter)
			assert.ErrorIs(t, err, tc.expectError)
		})
	}

	view, err := svc.View(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.DefaultFilters(), "rejected filters leave the session untouched")
}

func Test_Service_DebouncedFilter(t *testing.T) {
	svc := loadedService(t, 30*time.Millisecond)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	// when
	for _, text := range []string{"t", "tr", "tra", "trail"} {
		view, applied, err := svc.SetFilter(ctx, id, FilterDto{Type: "searchName", Value: text})
		require.NoError(t, err)
		assert.False(t, applied)
		assert.True(t, view.Pending)
	}

	// then
	require.Eventually(t, func() bool {
		view, err := svc.View(ctx, id)
		return err == nil && !view.Pending && view.FilterInput.SearchName == "trail"
	}, time.Second, 5*time.Millisecond)
	view, err := svc.View(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.Revision+1, view.Revision, "only the last value is committed")
	require.Len(t, view.FilterProducts, 1)
	assert.Equal(t, "3", view.FilterProducts[0].ID)
}

func Test_Service_Subscribe(t *testing.T) {
	svc := loadedService(t, 0)
	ctx := context.Background()
	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	views, cancel, err := svc.Subscribe(ctx, id)
	require.NoError(t, err)
	defer cancel()

	first := <-views
	assert.Equal(t, created.Revision, first.Revision)

	_, _, err = svc.SetFilter(ctx, id, FilterDto{Type: "ship"})
	require.NoError(t, err)

	select {
	case next := <-views:
		assert.True(t, next.FilterInput.Shipping)
	case <-time.After(time.Second):
		t.Fatal("no view after filter change")
	}

	_, _, err = svc.Subscribe(ctx, uuid.New())
	assert.ErrorIs(t, err, cerrors.ErrSessionNotFound)
}

func Test_Service_RunStopsOnCancel(t *testing.T) {
	var fetches atomic.Int32
	src := new(mockSource)
	src.On("Fetch", mock.Anything).Run(func(mock.Arguments) { fetches.Add(1) }).Return(testProducts(), nil)
	manager := session.NewManager(session.Config{TTL: time.Hour}, discard)
	defer manager.Close()
	svc := NewService(src, manager, nil, Options{ReloadInterval: 10 * time.Millisecond}, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-svc.Ready()
	require.Eventually(t, func() bool {
		return fetches.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
