package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/qrush/internal/domain/entity"
)

func newUserCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register or inspect players",
	}
	cmd.AddCommand(newUserRegisterCmd(cfg))
	return cmd
}

// newUserRegisterCmd registers a player ahead of their first inbound chat
// message — normally GetOrCreateByHandle does this implicitly, but an
// operator may want to pre-seed a roster (e.g. importing an existing
// audience) without waiting for everyone to text in first.
func newUserRegisterCmd(cfg *rootConfig) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register <handle>",
		Short: "Register a player by chat handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle := args[0]

			r, err := openRepos(cfg)
			if err != nil {
				return err
			}

			if existing, err := r.users.GetByHandle(handle); err == nil {
				fmt.Printf("user %s already registered as %s\n", existing.ID, handle)
				return nil
			}

			user := &entity.User{
				ID:             uuid.New(),
				Handle:         handle,
				DisplayName:    displayName,
				Active:         true,
				LastActivityAt: time.Now(),
			}
			if err := r.users.Create(user); err != nil {
				return fmt.Errorf("register user: %w", err)
			}

			fmt.Printf("registered user %s as %s\n", user.ID, handle)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "display name shown on the leaderboard")
	return cmd
}
