package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/cache"
)

const (
	CacheKeyRecordsTotal      = "statistics:records:total"
	CacheKeyTransactionsTotal = "statistics:transactions:total"
	CacheKeyRevenueTotal      = "statistics:revenue:total"
	CacheKeyClaimsPending     = "statistics:claims:pending"
	CacheExpiration           = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the admin dashboard
type StatisticsData struct {
	TotalRecords      int64 `json:"total_records"`
	TotalTransactions int64 `json:"total_transactions"`
	TotalRevenue      int64 `json:"total_revenue"`
	PendingClaims     int64 `json:"pending_claims"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached aggregates are due for a refresh
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached aggregates when the interval elapsed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all aggregates and stores them in the cache
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalRepositories()

	totalRecords, err := repos.Entitlement.Count()
	if err != nil {
		log.Printf("Error counting entitlement records: %v", err)
		return err
	}

	totalTransactions, totalRevenue, err := repos.Transaction.CountAndSum()
	if err != nil {
		log.Printf("Error aggregating transaction ledger: %v", err)
		return err
	}

	pendingClaims, err := repos.PendingPayment.CountByStatus(models.ClaimStatusPending)
	if err != nil {
		log.Printf("Error counting pending claims: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyRecordsTotal, strconv.FormatInt(totalRecords, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyTransactionsTotal, strconv.FormatInt(totalTransactions, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyRevenueTotal, strconv.FormatInt(totalRevenue, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyClaimsPending, strconv.FormatInt(pendingClaims, 10), CacheExpiration); err != nil {
		return err
	}

	log.Printf("Statistics updated in cache: Records: %d, Transactions: %d, Revenue: %d, Pending claims: %d",
		totalRecords, totalTransactions, totalRevenue, pendingClaims)

	return nil
}

func cachedValue(key string, compute func() (int64, error)) int64 {
	val, err := cache.Get(key)
	if err != nil {
		count, err := compute()
		if err != nil {
			log.Printf("Error computing statistic %s: %v", key, err)
			return 0
		}
		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching statistic %s: %v", key, err)
		}
		return count
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return count
}

// GetTotalRecords returns the number of entitlement records from cache or database
func GetTotalRecords() int64 {
	return cachedValue(CacheKeyRecordsTotal, func() (int64, error) {
		return repository.GetGlobalRepositories().Entitlement.Count()
	})
}

// GetTotalTransactions returns the size of the credit-grant ledger from cache or database
func GetTotalTransactions() int64 {
	return cachedValue(CacheKeyTransactionsTotal, func() (int64, error) {
		count, _, err := repository.GetGlobalRepositories().Transaction.CountAndSum()
		return count, err
	})
}

// GetTotalRevenue returns the summed credited amounts from cache or database
func GetTotalRevenue() int64 {
	return cachedValue(CacheKeyRevenueTotal, func() (int64, error) {
		_, sum, err := repository.GetGlobalRepositories().Transaction.CountAndSum()
		return sum, err
	})
}

// GetPendingClaims returns the number of undecided claims from cache or database
func GetPendingClaims() int64 {
	return cachedValue(CacheKeyClaimsPending, func() (int64, error) {
		return repository.GetGlobalRepositories().PendingPayment.CountByStatus(models.ClaimStatusPending)
	})
}

// GetStatisticsData returns all dashboard aggregates
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalRecords:      GetTotalRecords(),
		TotalTransactions: GetTotalTransactions(),
		TotalRevenue:      GetTotalRevenue(),
		PendingClaims:     GetPendingClaims(),
	}
}
