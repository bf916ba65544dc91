package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/auth"
	"storefront/internal/domain"
)

var (
	userName     string
	userPhone    string
	userPassword string
	revokeAdmin  bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Accounts and the login session",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a shopper account",
	RunE:  runUserRegister,
}

var userLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in; the session is shared with every context on this storage",
	RunE:  runUserLogin,
}

var userLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE:  runUserLogout,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUserList,
}

var userResetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password for an account",
	RunE:  runUserReset,
}

var userAdminCmd = &cobra.Command{
	Use:   "admin [user-id]",
	Short: "Grant administrator rights (--revoke to take them away)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdmin,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash for auth.admin_password_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{userRegisterCmd, userLoginCmd, userResetCmd} {
		c.Flags().StringVarP(&userPhone, "phone", "p", "", "Phone number")
		c.Flags().StringVar(&userPassword, "password", "", "Password")
		_ = c.MarkFlagRequired("phone")
		_ = c.MarkFlagRequired("password")
	}
	userRegisterCmd.Flags().StringVarP(&userName, "name", "n", "", "Full name")
	userAdminCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "Revoke instead of grant")

	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userLoginCmd)
	userCmd.AddCommand(userLogoutCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetCmd)
	userCmd.AddCommand(userAdminCmd)
	userCmd.AddCommand(hashPasswordCmd)
}

func describeUser(u domain.User) string {
	role := "shopper"
	if u.IsAdmin {
		role = "admin"
	}
	return fmt.Sprintf("%s  %s  %s  (%s)", u.ID, u.Name, u.Phone, role)
}

func runUserRegister(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	u, err := c.Auth.Register(userName, userPhone, userPassword)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeUser(u))
	return nil
}

func runUserLogin(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	u, err := c.Auth.Authenticate(userPhone, userPassword)
	if err != nil {
		return err
	}
	if err := c.State.Login(u); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", describeUser(u))
	return nil
}

func runUserLogout(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return c.State.Logout()
}

func runUserList(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	for _, u := range c.Auth.Users() {
		fmt.Fprintln(cmd.OutOrStdout(), describeUser(u))
	}
	return nil
}

func runUserReset(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Auth.ResetPassword(userPhone, userPassword)
}

func runUserAdmin(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Auth.SetAdmin(args[0], !revokeAdmin)
}
