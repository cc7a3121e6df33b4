package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamtalk/streamtalk-go/internal/interpret"
	"github.com/streamtalk/streamtalk-go/internal/logging"
	"github.com/streamtalk/streamtalk-go/internal/robot"
	"github.com/streamtalk/streamtalk-go/internal/session"
)

var robotCmd = &cobra.Command{
	Use:   "robot <session-id>",
	Short: "Run the scripted robot for a session until it finishes or pauses",
	Args:  cobra.ExactArgs(1),
	RunE:  runRobot,
}

var robotDebug bool

func init() {
	robotCmd.Flags().BoolVar(&robotDebug, "debug", false, "Verbose logging")
	rootCmd.AddCommand(robotCmd)
}

func runRobot(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	cfg, client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	logger, err := logging.New(robotDebug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store := session.NewStore(client.Redis())
	interp := interpret.NewClient(cfg.Interpreter.BaseURL, time.Duration(cfg.Interpreter.TimeoutSeconds)*time.Second)

	orc := robot.New(store, client, client, interp, robot.Options{
		ReadCount: int64(cfg.Chat.ReadCount),
		BlockWait: blockWait(cfg),
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := orc.Run(ctx, sessionID)
	fmt.Printf("session %s: %s\n", sessionID, state)
	return err
}
