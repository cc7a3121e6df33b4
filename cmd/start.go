package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/streamtalk/streamtalk-go/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start <script>",
	Short: "Create a fresh session for an interpretation script",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	_, client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	store := session.NewStore(client.Redis())
	sessionID := uuid.NewString()
	sess := session.New(args[0])

	if err := store.Create(context.Background(), sessionID, sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Println(sessionID)
	return nil
}
