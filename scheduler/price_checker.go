package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"dropwatch/models"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Catalog is the persistence collaborator for check cycles: a snapshot read
// plus a transaction covering all of one cycle's writes.
type Catalog interface {
	ListActiveProducts() ([]models.Product, error)
	BeginCycle() (CycleTx, error)
}

// CycleTx collects one cycle's writes into a single atomic commit. A failure
// of any of these calls is fatal to the cycle and nothing is committed.
type CycleTx interface {
	AppendHistorySample(productID int64, price decimal.Decimal, currency string, recordedAt time.Time) error
	UpdateProductPrice(productID int64, price decimal.Decimal, currency string, checkedAt time.Time) error
	TouchLastChecked(productID int64, checkedAt time.Time) error
	ListOpenAlerts(productID int64) ([]models.PriceAlert, error)
	MarkAlertTriggered(alertID int64, triggeredAt time.Time) error
	Commit() error
	Rollback() error
}

// PriceFetcher obtains a price for a product URL. Implemented by
// scraper.Fetcher.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, pageURL string) (*models.ExtractedPrice, error)
}

// Notifier dispatches a price drop notification. Invoked at most once per
// idle-to-fired transition; delivery failures are its own concern.
type Notifier interface {
	Notify(n models.PriceDropNotification) error
}

// PriceChecker runs the recurring price check cycle.
type PriceChecker struct {
	cron     *cron.Cron
	catalog  Catalog
	fetcher  PriceFetcher
	notifier Notifier

	cronSpec string
	workers  int
}

// NewPriceChecker creates a price checker. workers bounds per-cycle fetch
// concurrency; cronSpec is the cycle cadence, independent of any product's
// own interval.
func NewPriceChecker(catalog Catalog, fetcher PriceFetcher, notifier Notifier, cronSpec string, workers int) *PriceChecker {
	if workers < 1 {
		workers = 1
	}
	return &PriceChecker{
		cron:     cron.New(cron.WithSeconds()),
		catalog:  catalog,
		fetcher:  fetcher,
		notifier: notifier,
		cronSpec: cronSpec,
		workers:  workers,
	}
}

// Start schedules recurring cycles and runs one immediately.
func (pc *PriceChecker) Start() {
	_, err := pc.cron.AddFunc(pc.cronSpec, func() {
		if err := pc.RunCycle(context.Background()); err != nil {
			log.Printf("Price check cycle failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Failed to schedule price checker: %v", err)
		return
	}

	go func() {
		if err := pc.RunCycle(context.Background()); err != nil {
			log.Printf("Initial price check cycle failed: %v", err)
		}
	}()

	pc.cron.Start()
	log.Printf("Price checker scheduled with cadence %q", pc.cronSpec)
}

// Stop stops the cron schedule. A cycle already in flight finishes.
func (pc *PriceChecker) Stop() {
	if pc.cron != nil {
		pc.cron.Stop()
	}
}

// checkOutcome tags the result of one product's fetch within a cycle.
type checkOutcome struct {
	product   models.Product
	extracted *models.ExtractedPrice
	err       error
}

// RunCycle performs one full evaluation cycle: select the due set against a
// single now, fetch every due product with bounded concurrency and isolated
// failures, then apply history/price/alert writes in one transaction and
// dispatch notifications after the commit succeeds. The returned error is
// only ever a cycle-fatal persistence failure.
func (pc *PriceChecker) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()

	products, err := pc.catalog.ListActiveProducts()
	if err != nil {
		return fmt.Errorf("failed to list products: %v", err)
	}

	due := DueProducts(now, products)
	if len(due) == 0 {
		return nil
	}
	log.Printf("Checking prices for %d of %d products", len(due), len(products))

	outcomes := make([]checkOutcome, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.workers)
	for i, p := range due {
		i, p := i, p
		g.Go(func() error {
			// Each fetch attempt is bounded by the fetcher's own timeouts;
			// the group context only propagates caller cancellation.
			extracted, err := pc.fetcher.FetchPrice(gctx, p.URL)
			outcomes[i] = checkOutcome{product: p, extracted: extracted, err: err}
			return nil
		})
	}
	// Fetch errors are carried in the outcomes, never through the group.
	_ = g.Wait()

	tx, err := pc.catalog.BeginCycle()
	if err != nil {
		return fmt.Errorf("failed to begin cycle transaction: %v", err)
	}
	defer tx.Rollback()

	var pending []models.PriceDropNotification
	var updated, unchanged, failed int

	for _, outcome := range outcomes {
		p := outcome.product
		if outcome.err != nil {
			log.Printf("Failed to check product %d (%s): %v", p.ID, p.URL, outcome.err)
			failed++
			continue
		}

		changed, fired, err := pc.applyOutcome(tx, p, outcome.extracted, now)
		if err != nil {
			return err
		}
		if changed {
			updated++
		} else {
			unchanged++
		}
		pending = append(pending, fired...)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %v", err)
	}

	// Dispatched only after the commit so a failed cycle sends nothing.
	pc.dispatch(pending)

	log.Printf("Price check cycle completed: %d updated, %d unchanged, %d failed, %d alerts fired",
		updated, unchanged, failed, len(pending))
	return nil
}

// CheckProduct runs the fetch/diff/alert sequence for a single product on
// demand, with its own transaction. The fetch error (including the expected
// no-price outcome) is returned to the caller for manual handling.
func (pc *PriceChecker) CheckProduct(ctx context.Context, product models.Product) (*models.ExtractedPrice, error) {
	now := time.Now().UTC()

	extracted, err := pc.fetcher.FetchPrice(ctx, product.URL)
	if err != nil {
		return nil, err
	}

	tx, err := pc.catalog.BeginCycle()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	_, fired, err := pc.applyOutcome(tx, product, extracted, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit check: %v", err)
	}

	pc.dispatch(fired)
	return extracted, nil
}

// applyOutcome records one product's successful check: a history sample and
// price update when the price changed, the last-checked timestamp regardless,
// and then the alert transitions against the new price. The product's own
// writes always precede its alert evaluation.
func (pc *PriceChecker) applyOutcome(tx CycleTx, p models.Product, extracted *models.ExtractedPrice, now time.Time) (bool, []models.PriceDropNotification, error) {
	newPrice := extracted.Price
	changed := !p.CurrentPrice.Valid || !p.CurrentPrice.Decimal.Equal(newPrice)
	if changed {
		if err := tx.AppendHistorySample(p.ID, newPrice, extracted.Currency, now); err != nil {
			return false, nil, fmt.Errorf("failed to append history for product %d: %v", p.ID, err)
		}
		if err := tx.UpdateProductPrice(p.ID, newPrice, extracted.Currency, now); err != nil {
			return false, nil, fmt.Errorf("failed to update price for product %d: %v", p.ID, err)
		}
		log.Printf("Price updated for product %d: %s %s", p.ID, newPrice, extracted.Currency)
	} else {
		if err := tx.TouchLastChecked(p.ID, now); err != nil {
			return false, nil, fmt.Errorf("failed to touch product %d: %v", p.ID, err)
		}
	}

	alerts, err := tx.ListOpenAlerts(p.ID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to list alerts for product %d: %v", p.ID, err)
	}

	var fired []models.PriceDropNotification
	for _, alert := range alerts {
		if !ShouldFire(alert, newPrice) {
			continue
		}
		if err := tx.MarkAlertTriggered(alert.ID, now); err != nil {
			return false, nil, fmt.Errorf("failed to trigger alert %d: %v", alert.ID, err)
		}
		log.Printf("Alert %d triggered for product %d at price %s", alert.ID, p.ID, newPrice)
		fired = append(fired, models.PriceDropNotification{
			ProductID: p.ID,
			AlertID:   alert.ID,
			Price:     newPrice,
		})
	}

	return changed, fired, nil
}

// dispatch sends notifications one at a time. Delivery failures are logged
// and never retried; the fired transition stands either way.
func (pc *PriceChecker) dispatch(pending []models.PriceDropNotification) {
	for _, n := range pending {
		if err := pc.notifier.Notify(n); err != nil {
			log.Printf("Failed to send notification for alert %d: %v", n.AlertID, err)
		}
	}
}
