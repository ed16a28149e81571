package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/warden/access"
)

func newResolveCmd() *cobra.Command {
	var (
		configFile string
		userID     string
		role       string
		creatorID  string
		outsider   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a user's permission against a stored access config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := access.Default()
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return err
				}
				if cfg, err = access.Unmarshal(data); err != nil {
					return err
				}
			}
			if problems := access.Validate(cfg); len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", p)
				}
			}

			res := access.NotMember()
			if !outsider {
				res = access.Resolve(
					access.Actor{UserID: userID, Role: access.Role(role)},
					access.Session{CreatorID: creatorID, Config: cfg},
				)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "permission: %s\n", res.Permission)
			fmt.Fprintf(out, "mode:       %s\n", res.Mode)
			fmt.Fprintf(out, "reason:     %s\n", res.Reason)
			if res.Warning != nil {
				fmt.Fprintf(out, "warning:    %v\n", res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "access config document (JSON); default organization mode")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(access.RoleMember), "user's organization role")
	cmd.Flags().StringVar(&creatorID, "creator", "", "session creator id")
	cmd.Flags().BoolVar(&outsider, "not-member", false, "the user is outside the session's organization")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
