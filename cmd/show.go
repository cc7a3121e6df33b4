package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamtalk/streamtalk-go/internal/session"
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored session document",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	_, client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	store := session.NewStore(client.Redis())
	sess, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
