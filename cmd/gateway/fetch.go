package main

import (
	"context"
	"fmt"

	"deckshot/internal/gateway/app"
	"deckshot/internal/gateway/entity"
	"deckshot/internal/gateway/service/deck"

	"github.com/spf13/cobra"
)

var flagRecordID string

// fetchCmd runs one acquisition and prints the stored reference.
var fetchCmd = &cobra.Command{
	Use:   "fetch <deck-code>",
	Short: "Acquire one deck image and print its URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&flagRecordID, "record", "", "deck record id to update")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	res, err := a.Service().Fetch(cmd.Context(), deck.Request{
		Code:     entity.NormalizeDeckCode(args[0]),
		RecordID: entity.RecordID(flagRecordID),
	})
	if err != nil {
		if step, ok := deck.FailedStep(err); ok {
			return fmt.Errorf("failed at %s: %w", step, err)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Reference)
	return nil
}
