package counter

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/cache"
)

const generationsKey = "entitlement:counters:generations"

// AddGeneration increments the pending generation counter for a user in
// Redis. Counters are usage telemetry, not billing state; the credit balance
// is mutated through the accountant only.
func AddGeneration(email string) {
	ctx := context.Background()
	if err := cache.GetClient().HIncrBy(ctx, generationsKey, email, 1).Err(); err != nil {
		log.Printf("failed to count generation for %s: %v", email, err)
	}
}

// Flush drains the pending counters and applies them to entitlement records
// in one batched update.
func Flush(repo repository.EntitlementRepository) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining, so increments
	// arriving mid-flush land in the next batch instead of being lost.
	tmpKey := fmt.Sprintf("%s:tmp:%d", generationsKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", generationsKey, tmpKey).Err(); err != nil {
		// If the key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || cache.IsNotFound(err) {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	counts := make(map[string]int64, len(data))
	for email, raw := range data {
		inc, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || inc == 0 {
			continue
		}
		counts[email] = inc
	}
	return repo.AddGenerationCounts(counts)
}

// RunFlusher flushes counters on the given interval until the context ends.
func RunFlusher(ctx context.Context, repo repository.EntitlementRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Flush(repo); err != nil {
				log.Printf("generation counter flush failed: %v", err)
			}
		}
	}
}
