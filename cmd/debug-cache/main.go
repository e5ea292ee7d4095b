package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fatal error loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	if db == nil {
		log.Fatalf("No cache address configured in %s", config.FileName)
	}
	defer db.Close()

	rdb := db.Client()
	iter := rdb.Scan(ctx, 0, "dex-voice-rating:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fmt.Printf("\n--- Key: %s ---\n", key)
		keyType, err := rdb.Type(ctx, key).Result()
		if err != nil {
			log.Printf("Failed to get type for key %s: %v", key, err)
			continue
		}
		fmt.Printf("Type: %s\n", keyType)

		switch keyType {
		case "string":
			val, err := rdb.Get(ctx, key).Result()
			if err != nil {
				log.Printf("Failed to get string value for key %s: %v", key, err)
				continue
			}
			fmt.Printf("Value: %s\n", pretty(key, val))
			if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				fmt.Printf("TTL: %s\n", ttl)
			}
		case "list":
			vals, err := rdb.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				log.Printf("Failed to get list value for key %s: %v", key, err)
				continue
			}
			fmt.Printf("Values:\n")
			for _, val := range vals {
				fmt.Printf("  - %s\n", val)
			}
		default:
			fmt.Println("Value: (unsupported type for printing)")
		}
	}
	if err := iter.Err(); err != nil {
		log.Fatalf("Failed to scan keys: %v", err)
	}
}

// pretty summarizes sessions and ratings; other values print as stored.
func pretty(key, val string) string {
	switch {
	case strings.Contains(key, ":session:"):
		var s cache.Session
		if err := json.Unmarshal([]byte(val), &s); err == nil {
			return fmt.Sprintf("%s [%s] since %s", s.ID, s.Status, s.CreatedAt.Format(time.RFC3339))
		}
	case strings.Contains(key, ":rating:") && !strings.HasSuffix(key, ":seq"):
		var r cache.Rating
		if err := json.Unmarshal([]byte(val), &r); err == nil {
			return fmt.Sprintf("#%d %s %s %.1f stars (%s)", r.ID, r.MotorType, r.PlateNumber, r.Score, r.SystemComments)
		}
	}
	return val
}
