package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"home-setup/internal/domain"
)

// login: store the identity returned by the backend's login endpoint.
func loginCmd() *cobra.Command {
	var identity domain.Identity
	var role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Remember the signed-in identity for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.UserID <= 0 {
				return fmt.Errorf("--id must be a positive user id")
			}
			identity.Role = domain.Role(role)
			identity.Role = identity.EffectiveRole()

			if err := sessions.Save(cmd.Context(), identity); err != nil {
				return err
			}
			fmt.Printf("signed in as %s (%s), go to %s\n", identity.Username, identity.Role, domain.RouteForRole(identity.Role))
			return nil
		},
	}

	cmd.Flags().IntVar(&identity.UserID, "id", 0, "user id")
	cmd.Flags().StringVar(&identity.Username, "username", "", "user name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "role: user, worker or admin")
	cmd.Flags().StringVar(&identity.AuthToken, "token", "", "auth token issued by the backend")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity and its landing page",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := sessions.Current(cmd.Context())
			if err != nil {
				return err
			}
			role := identity.EffectiveRole()
			fmt.Printf("%s (id %d, %s) -> %s\n", identity.Username, identity.UserID, role, domain.RouteForRole(role))
			return nil
		},
	}
}

// route <role>: print the landing page for a role.
func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <role>",
		Short: "Print the landing page for a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(domain.RouteForRole(domain.Role(args[0])))
			return nil
		},
	}
}
