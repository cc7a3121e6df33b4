package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamtalk/streamtalk-go/internal/config"
	"github.com/streamtalk/streamtalk-go/internal/stream"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show streamtalk status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("streamtalk Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Redis: %s\n", cfg.Redis.URL)
	fmt.Printf("Interpreter: %s\n", cfg.Interpreter.BaseURL)
	fmt.Println()

	client, err := stream.New(stream.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		fmt.Printf("Redis: ✗ (%v)\n", err)
	} else {
		fmt.Println("Redis: ✓")
		client.Close()
	}

	httpClient := &http.Client{Timeout: 3 * time.Second}
	resp, err := httpClient.Get(cfg.Interpreter.BaseURL)
	if err != nil {
		fmt.Printf("Interpreter: ✗ (%v)\n", err)
	} else {
		resp.Body.Close()
		fmt.Println("Interpreter: ✓")
	}

	return nil
}
