package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamtalk/streamtalk-go/internal/connector"
	"github.com/streamtalk/streamtalk-go/internal/control"
	"github.com/streamtalk/streamtalk-go/internal/logging"
	"github.com/streamtalk/streamtalk-go/internal/session"
	"github.com/streamtalk/streamtalk-go/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <session-id>",
	Short: "Open the interactive chat client for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

var chatDebug bool

func init() {
	chatCmd.Flags().BoolVar(&chatDebug, "debug", false, "Verbose logging")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	cfg, client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	logger, err := logging.NewFile(cfg.LogFile, chatDebug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store := session.NewStore(client.Redis())
	sess, err := store.Load(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("no session %s: %w", sessionID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := ui.NewState("Chatroom: " + sessionID)

	// The spawn closure captures med after construction; the mediator only
	// calls it from the drain, well past the assignment below.
	var med *control.Mediator
	var conns []*connector.Connector
	spawn := func(username, chatID string) (func(string), error) {
		c := connector.Spawn(ctx, client, client, username, chatID, med, connector.Options{
			ReadCount:      int64(cfg.Chat.ReadCount),
			BlockWait:      blockWait(cfg),
			OutboundBuffer: cfg.Chat.OutboundBuffer,
		}, logger)
		conns = append(conns, c)
		return c.Post, nil
	}
	med = control.NewMediator(st, spawn, cfg.Chat.SignalBuffer, logger)

	// Intro signal: bind the client to the session's chat and username.
	if err := med.Send(ctx, control.ConnectTo{Username: sess.Username, ChatID: sess.ChatID}); err != nil {
		return err
	}

	final, err := tea.NewProgram(ui.New(st, med, logger), tea.WithAltScreen()).Run()

	grace := time.Duration(cfg.Chat.ShutdownGraceMillis) * time.Millisecond
	cancel()
	for _, c := range conns {
		c.Close(grace)
	}

	// Heartbeat so session reapers can see when the chat was last open.
	if terr := store.Touch(context.Background(), sessionID); terr != nil {
		logger.Warn("session heartbeat failed on exit", zap.Error(terr))
	}

	if err != nil {
		return err
	}
	if m, ok := final.(ui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
