package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codephoenix86/fastchat/internal/auth"
	"github.com/codephoenix86/fastchat/internal/store"
)

func newIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := store.ConnectMongo(ctx, cfg.Mongo, log)
			if err != nil {
				return err
			}
			defer db.Close(context.WithoutCancel(ctx))

			if err := db.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			log.Info("Indexes are up to date")
			return nil
		},
	}
}

func newTokenCommand() *cobra.Command {
	var principal auth.Principal

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user, for testing WebSocket clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := store.ParseID(principal.ID); err != nil {
				return err
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.NewTokens(cfg.JWT).IssueAccess(principal)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal.ID, "user", "", "user id (24-character hex)")
	cmd.Flags().StringVar(&principal.Username, "username", "", "username claim")
	cmd.Flags().StringVar(&principal.Role, "role", string(store.RoleUser), "role claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fastchat", version)
		},
	}
}
