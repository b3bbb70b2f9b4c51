// Command depcheck verifies that the Kafka topics and Redis instance the
// async crawl path depends on are reachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"github.com/spf13/viper"

	"product-crawler/internal/config"
	"product-crawler/internal/store"
)

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions := store.NewRedisSessionStore(cfg.RedisAddr, cfg.StatusPrefix, cfg.StatusTTL)
	defer sessions.Close()

	checks := []check{
		kafkaCheck(cfg.KafkaBroker, cfg.JobsTopic, cfg.ResultsTopic),
		redisCheck(cfg.RedisAddr, sessions),
	}
	if err := runChecks(ctx, checks, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// runChecks runs every check, reporting one line per check to out.
func runChecks(ctx context.Context, checks []check, out io.Writer) error {
	var errs []error
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		fmt.Fprintf(out, "ok   %s: %s\n", c.name, detail)
	}
	return errors.Join(errs...)
}

func kafkaCheck(broker string, topics ...string) check {
	return check{
		name: "kafka",
		run: func(ctx context.Context) (string, error) {
			conn, err := kgo.DialContext(ctx, "tcp", broker)
			if err != nil {
				return "", fmt.Errorf("connect to %s: %w", broker, err)
			}
			defer conn.Close()

			partitions, err := conn.ReadPartitions(topics...)
			if err != nil {
				return "", fmt.Errorf("read metadata: %w", err)
			}
			counts := partitionCounts(partitions)
			if missing := missingTopics(counts, topics); len(missing) > 0 {
				return "", fmt.Errorf("topics without partitions: %v", missing)
			}
			return fmt.Sprintf("%s (%d partitions across %d topics)", broker, len(partitions), len(counts)), nil
		},
	}
}

func redisCheck(addr string, p pinger) check {
	return check{
		name: "redis",
		run: func(ctx context.Context) (string, error) {
			if err := p.Ping(ctx); err != nil {
				return "", fmt.Errorf("ping %s: %w", addr, err)
			}
			return addr, nil
		},
	}
}

func partitionCounts(partitions []kgo.Partition) map[string]int {
	counts := make(map[string]int)
	for _, p := range partitions {
		counts[p.Topic]++
	}
	return counts
}

func missingTopics(counts map[string]int, topics []string) []string {
	var missing []string
	for _, t := range topics {
		if counts[t] == 0 {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing
}
