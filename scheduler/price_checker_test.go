package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dropwatch/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type historySample struct {
	productID int64
	price     decimal.Decimal
	currency  string
}

type fakeTx struct {
	mu         sync.Mutex
	commitErr  error
	committed  bool
	rolledBack bool

	alerts map[int64][]models.PriceAlert

	samples   []historySample
	updates   []historySample
	touched   []int64
	triggered []int64
}

func (tx *fakeTx) AppendHistorySample(productID int64, price decimal.Decimal, currency string, recordedAt time.Time) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.samples = append(tx.samples, historySample{productID, price, currency})
	return nil
}

func (tx *fakeTx) UpdateProductPrice(productID int64, price decimal.Decimal, currency string, checkedAt time.Time) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.updates = append(tx.updates, historySample{productID, price, currency})
	return nil
}

func (tx *fakeTx) TouchLastChecked(productID int64, checkedAt time.Time) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.touched = append(tx.touched, productID)
	return nil
}

func (tx *fakeTx) ListOpenAlerts(productID int64) ([]models.PriceAlert, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	var open []models.PriceAlert
	for _, alert := range tx.alerts[productID] {
		if StateOf(alert) == AlertIdle {
			open = append(open, alert)
		}
	}
	return open, nil
}

func (tx *fakeTx) MarkAlertTriggered(alertID int64, triggeredAt time.Time) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.triggered = append(tx.triggered, alertID)
	for productID, alerts := range tx.alerts {
		for i, alert := range alerts {
			if alert.ID == alertID {
				tx.alerts[productID][i].TriggeredAt = &triggeredAt
			}
		}
	}
	return nil
}

func (tx *fakeTx) Commit() error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

// fakeCatalog shares one fakeTx across cycles so alert transitions persist
// between runs, the way rows would.
type fakeCatalog struct {
	products []models.Product
	tx       *fakeTx
	beginErr error
}

func (c *fakeCatalog) ListActiveProducts() ([]models.Product, error) {
	var active []models.Product
	for _, p := range c.products {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (c *fakeCatalog) BeginCycle() (CycleTx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]*models.ExtractedPrice
	errs    map[string]error
	calls   map[string]int
}

func (f *fakeFetcher) FetchPrice(ctx context.Context, pageURL string) (*models.ExtractedPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[pageURL]++
	if err := f.errs[pageURL]; err != nil {
		return nil, err
	}
	return f.results[pageURL], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.PriceDropNotification
	err  error
}

func (n *fakeNotifier) Notify(notification models.PriceDropNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func nullPrice(raw string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(raw), Valid: true}
}

func trackedProduct(id int64, url, currentPrice string, minutesSinceCheck int) models.Product {
	p := models.Product{
		ID:                   id,
		URL:                  url,
		IsActive:             true,
		CheckIntervalMinutes: 60,
		Currency:             "USD",
	}
	if currentPrice != "" {
		p.CurrentPrice = nullPrice(currentPrice)
	}
	if minutesSinceCheck >= 0 {
		ts := time.Now().UTC().Add(-time.Duration(minutesSinceCheck) * time.Minute)
		p.LastCheckedAt = &ts
	}
	return p
}

func TestRunCyclePriceDropFiresAlert(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{
		1: {{ID: 10, ProductID: 1, TargetPrice: decimal.RequireFromString("45.00"), IsActive: true}},
	}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("40.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	require.True(t, tx.committed)
	require.Len(t, tx.samples, 1)
	require.True(t, tx.samples[0].price.Equal(decimal.RequireFromString("40.00")))
	require.Len(t, tx.updates, 1)
	require.Empty(t, tx.touched)
	require.Equal(t, []int64{10}, tx.triggered)

	require.Len(t, notifier.sent, 1)
	require.Equal(t, int64(1), notifier.sent[0].ProductID)
	require.Equal(t, int64(10), notifier.sent[0].AlertID)
	require.True(t, notifier.sent[0].Price.Equal(decimal.RequireFromString("40.00")))
}

func TestRunCycleUnchangedPriceOnlyTouches(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("50.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	require.Empty(t, tx.samples)
	require.Empty(t, tx.updates)
	require.Equal(t, []int64{1}, tx.touched)
	require.Empty(t, notifier.sent)
}

func TestRunCycleSkipsProductsNotDue(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 10)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	require.Empty(t, fetcher.calls)
	require.False(t, tx.committed)
}

func TestRunCycleIsolatesFetchFailures(t *testing.T) {
	healthy := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	broken := trackedProduct(2, "https://shop.example/p/2", "30.00", 61)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{}}
	catalog := &fakeCatalog{products: []models.Product{healthy, broken}, tx: tx}
	fetcher := &fakeFetcher{
		results: map[string]*models.ExtractedPrice{
			healthy.URL: {Price: decimal.RequireFromString("48.00"), Currency: "USD"},
		},
		errs: map[string]error{
			broken.URL: errors.New("no price could be extracted from the page"),
		},
	}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	// The healthy product is updated despite its neighbor failing.
	require.True(t, tx.committed)
	require.Len(t, tx.updates, 1)
	require.Equal(t, int64(1), tx.updates[0].productID)
	require.Empty(t, tx.touched)
}

func TestRunCycleCommitFailureSendsNothing(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	tx := &fakeTx{
		commitErr: errors.New("connection reset"),
		alerts: map[int64][]models.PriceAlert{
			1: {{ID: 10, ProductID: 1, TargetPrice: decimal.RequireFromString("45.00"), IsActive: true}},
		},
	}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("40.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.Error(t, pc.RunCycle(context.Background()))

	require.Empty(t, notifier.sent)
	require.True(t, tx.rolledBack)
}

// Running a second cycle after a price change touches the product without
// appending another sample or firing the alert again.
func TestRunCycleIdempotentAcrossRuns(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{
		1: {{ID: 10, ProductID: 1, TargetPrice: decimal.RequireFromString("45.00"), IsActive: true}},
	}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("40.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	// Second cycle observes the same price already stored on the product.
	catalog.products[0].CurrentPrice = nullPrice("40.00")
	catalog.products[0].LastCheckedAt = nil
	require.NoError(t, pc.RunCycle(context.Background()))

	require.Len(t, tx.samples, 1)
	require.Equal(t, []int64{1}, tx.touched)
	require.Equal(t, []int64{10}, tx.triggered)
	require.Len(t, notifier.sent, 1)
}

func TestRunCycleNotificationFailureDoesNotFail(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 61)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{
		1: {{ID: 10, ProductID: 1, TargetPrice: decimal.RequireFromString("45.00"), IsActive: true}},
	}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("40.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{err: errors.New("smtp unreachable")}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)
	require.NoError(t, pc.RunCycle(context.Background()))

	// The alert stays fired even though delivery failed.
	require.Equal(t, []int64{10}, tx.triggered)
}

func TestCheckProduct(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 10)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{
		1: {{ID: 10, ProductID: 1, TargetPrice: decimal.RequireFromString("45.00"), IsActive: true}},
	}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetcher := &fakeFetcher{results: map[string]*models.ExtractedPrice{
		product.URL: {Price: decimal.RequireFromString("44.00"), Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)

	// On-demand checks ignore due-ness entirely.
	extracted, err := pc.CheckProduct(context.Background(), product)
	require.NoError(t, err)
	require.True(t, extracted.Price.Equal(decimal.RequireFromString("44.00")))

	require.True(t, tx.committed)
	require.Len(t, tx.samples, 1)
	require.Equal(t, []int64{10}, tx.triggered)
	require.Len(t, notifier.sent, 1)
}

func TestCheckProductFetchErrorLeavesStateAlone(t *testing.T) {
	product := trackedProduct(1, "https://shop.example/p/1", "50.00", 10)
	tx := &fakeTx{alerts: map[int64][]models.PriceAlert{}}
	catalog := &fakeCatalog{products: []models.Product{product}, tx: tx}
	fetchErr := errors.New("no price could be extracted from the page")
	fetcher := &fakeFetcher{errs: map[string]error{product.URL: fetchErr}}
	notifier := &fakeNotifier{}

	pc := NewPriceChecker(catalog, fetcher, notifier, "@every 1h", 2)

	_, err := pc.CheckProduct(context.Background(), product)
	require.ErrorIs(t, err, fetchErr)
	require.False(t, tx.committed)
	require.Empty(t, tx.samples)
	require.Empty(t, tx.touched)
}
