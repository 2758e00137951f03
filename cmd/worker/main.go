package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartattend/internal/attendance"
	"smartattend/internal/config"
	"smartattend/internal/queue"
	"smartattend/internal/store"
)

// Worker consumes recorded-attendance events and maintains the daily audit
// trail in Redis.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Println("WARNING: memory queue backend shares no state with the API process")
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "smartattend:events")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "attendance.recorded" {
			continue
		}

		var evt attendance.RecordedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed event, skipping: %v", err)
			continue
		}

		log.Printf("record %d: student %d (%s) marked %q at %s on %s",
			evt.RecordID, evt.StudentID, evt.RollNumber, evt.Status, evt.Time, evt.Date)

		// Per-institute daily tallies, kept for a week for the admin dashboard.
		key := fmt.Sprintf("smartattend:audit:%d:%s", evt.InstituteID, evt.Date)
		auditCtx, auditCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Client.HIncrBy(auditCtx, key, evt.Status, 1).Err(); err != nil {
			log.Printf("audit tally failed for record %d: %v", evt.RecordID, err)
		} else {
			redisClient.Client.Expire(auditCtx, key, 7*24*time.Hour)
		}
		auditCancel()
	}

	log.Println("worker stopped")
}
