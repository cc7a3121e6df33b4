package cmd

import (
	"fmt"
	"time"

	"github.com/streamtalk/streamtalk-go/internal/config"
	"github.com/streamtalk/streamtalk-go/internal/stream"
)

// connect loads the config and opens the Redis connection shared by the
// chat streams and the session document store.
func connect() (config.Config, *stream.Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	client, err := stream.New(stream.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, client, nil
}

func blockWait(cfg config.Config) time.Duration {
	return time.Duration(cfg.Chat.BlockMillis) * time.Millisecond
}
