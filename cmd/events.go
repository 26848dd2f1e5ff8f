/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/shelfkeeper/apiserver/config"
	"github.com/shelfkeeper/apiserver/internal/logging"
	"github.com/shelfkeeper/apiserver/internal/mq"
	"github.com/shelfkeeper/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect book change events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log book events published on MQ_CHANNEL until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			if errors.Is(err, mq.ErrDisabled) {
				logger.Error().Msg("MQ_BACKEND is none, nothing to watch")
			}
			return err
		}
		defer broker.Close()

		logger.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.Channel).Msg("watching book events")
		err = mq.NewBookEvents(broker, cfg.MQ.Channel).Watch(ctx, func(_ context.Context, event types.BookEvent) error {
			logger.Info().
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Str("book_id", event.BookID).
				Str("user_id", event.UserID).
				Str("title", event.Title).
				Time("at", event.At).
				Msg("book event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
