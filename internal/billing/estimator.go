// Package billing estimates the cost of a task before creation. The
// estimate is advisory for display only; the backend fixes the billed cost
// at creation time.
package billing

import (
	"context"
	"math"
	"sync"

	"github.com/aidso/geo-console/internal/models"
	"github.com/sirupsen/logrus"
)

// Estimate computes the unit cost of running the selected models at the
// given depth: sum of per-model prices, times the deep multiplier for deep
// searches, rounded up so the display never undershoots the charge. A model
// missing from the table prices at zero.
func Estimate(modelKeys []string, searchType models.SearchType, pricing *models.PricingTable) int {
	var sum float64
	for _, key := range modelKeys {
		sum += pricing.ModelPrices[key]
	}
	if searchType == models.SearchDeep {
		sum *= pricing.DeepMultiplier
	}
	return int(math.Ceil(sum))
}

// FallbackEstimate is the heuristic shown before pricing has loaded: one
// unit per model, doubled for deep searches.
func FallbackEstimate(modelKeys []string, searchType models.SearchType) int {
	cost := len(modelKeys)
	if searchType == models.SearchDeep {
		cost *= 2
	}
	return cost
}

// pricingClient fetches the price table from the backend.
type pricingClient interface {
	Pricing(ctx context.Context) (*models.PricingTable, error)
}

// Estimator caches the backend pricing table and falls back to the
// heuristic until it loads.
type Estimator struct {
	api pricingClient

	mu      sync.RWMutex
	pricing *models.PricingTable
}

// NewEstimator creates an estimator with no pricing loaded yet.
func NewEstimator(api pricingClient) *Estimator {
	return &Estimator{api: api}
}

// LoadPricing fetches and caches the price table. Failure keeps the
// fallback in effect.
func (e *Estimator) LoadPricing(ctx context.Context) {
	table, err := e.api.Pricing(ctx)
	if err != nil {
		logrus.Warnf("Failed to load pricing table, estimates use fallback: %v", err)
		return
	}

	e.mu.Lock()
	e.pricing = table
	e.mu.Unlock()
}

// Estimate returns the best available cost estimate for the selection.
func (e *Estimator) Estimate(modelKeys []string, searchType models.SearchType) int {
	e.mu.RLock()
	pricing := e.pricing
	e.mu.RUnlock()

	if pricing == nil {
		return FallbackEstimate(modelKeys, searchType)
	}
	return Estimate(modelKeys, searchType, pricing)
}
