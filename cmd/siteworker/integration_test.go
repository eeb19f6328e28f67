//go:build integration

package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/Sternrassler/siteworker/internal/config"
	"github.com/Sternrassler/siteworker/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return "redis://" + host + ":" + port.Port() + "/0"
}

func TestRedisBackedSiteWorker_SurvivesRestart(t *testing.T) {
	redisURL := setupTestRedis(t)
	ctx := context.Background()

	origin := testutil.NewPortfolioOrigin()
	defer origin.Close()

	cfg := config.Config{Storage: config.StorageRedis, RedisURL: redisURL, RedisPrefix: "siteworker-it"}
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	env := newTestEnvWith(t, origin, storage, true)

	if resp := env.get("/ready", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("ready status = %d", resp.StatusCode)
	}
	storage.Close()

	// A fresh process on the same Redis serves the installed assets offline
	origin.SetDown(true)
	restarted, err := openStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	defer restarted.Close()
	env = newTestEnvWith(t, origin, restarted, true)

	resp := env.get("/assets/css/style.css", "style")
	if got := resp.Header.Get("Cache-Status"); got != "siteworker; hit" {
		t.Errorf("Cache-Status = %q", got)
	}
	if body := bodyOf(t, resp); body != "body{margin:0}" {
		t.Errorf("body = %q", body)
	}

	opts, _ := redis.ParseURL(redisURL)
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	names, err := rdb.ZRange(ctx, "siteworker-it:caches", 0, -1).Result()
	if err != nil {
		t.Fatalf("ZRange failed: %v", err)
	}
	if len(names) != 1 || names[0] != "portfolio-cache-portfolio-v1.0.0" {
		t.Errorf("caches in redis = %v", names)
	}
}
