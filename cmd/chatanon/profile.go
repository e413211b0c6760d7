package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/omochice/chatanon/internal/config"
	"github.com/omochice/chatanon/internal/identity"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the anonymous profile sent to the pairing server",
	}
	cmd.AddCommand(profileSetCmd(), profileShowCmd(), profileClearCmd())
	return cmd
}

// withStore opens the identity store from the environment configuration.
func withStore(fn func(cfg config.Config, store *identity.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}
	store, err := identity.Open(cfg.DataDir, nil)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func profileSetCmd() *cobra.Command {
	var (
		gender    string
		interests []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set gender and interests",
		Long: fmt.Sprintf(`Set gender and interests. The anonymous id is generated the first time.

Genders:   %s
Interests: %s`, strings.Join(identity.Genders, ", "), strings.Join(identity.Interests, ", ")),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(_ config.Config, store *identity.Store) error {
				normalized := lo.Uniq(lo.Map(interests, func(s string, _ int) string {
					return strings.ToLower(strings.TrimSpace(s))
				}))
				if err := store.SetUserData(strings.ToLower(gender), normalized); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Profile saved.")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&gender, "gender", "g", "", "male or female")
	cmd.Flags().StringSliceVarP(&interests, "interests", "i", nil, "comma separated interests")
	_ = cmd.MarkFlagRequired("gender")
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(cfg config.Config, store *identity.Store) error {
				data, err := store.GetUserData()
				if err != nil {
					return err
				}
				loc := identity.DetectLocale(cfg.Language, cfg.Timezone)
				renderProfile(cmd.OutOrStdout(), [][2]string{
					{"User ID", data.UserID},
					{"Gender", data.Gender},
					{"Interests", strings.Join(data.Interests, ", ")},
					{"Language", loc.Language},
					{"Timezone", loc.Timezone},
				})
				return nil
			})
		},
	}
}

func profileClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the profile and the anonymous id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(_ config.Config, store *identity.Store) error {
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Profile cleared.")
				return nil
			})
		},
	}
}
