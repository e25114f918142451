package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acolita/telnet-shell-mcp/internal/security"
)

var (
	passwordUser string
	passwordYes  bool
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "manage device passwords in the OS keyring",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set <device|host>",
	Short: "store a login password in the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		device := target(cfg, args[0], 0, passwordUser)
		if device.User == "" {
			return errors.New("--user is required")
		}

		ks := keyring()
		if !ks.IsEnabled() {
			return security.ErrKeyringUnavailable
		}

		account := security.Account(device.Host, device.User)
		pw, err := prompter().Password("Password for "+account, "Stored in the OS keyring")
		if err != nil {
			return err
		}
		secret := []byte(pw)
		defer security.WipeBytes(secret)

		if err := ks.StoreDevicePassword(device.Host, device.User, secret); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored password for %s\n", account)
		return nil
	},
}

var passwordDeleteCmd = &cobra.Command{
	Use:   "delete <device|host>",
	Short: "remove a login password from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		device := target(cfg, args[0], 0, passwordUser)
		if device.User == "" {
			return errors.New("--user is required")
		}

		account := security.Account(device.Host, device.User)
		if !passwordYes {
			ok, err := prompter().Confirm("Delete the stored password for " + account + "?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			}
		}

		if err := keyring().DeleteDevicePassword(device.Host, device.User); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted password for %s\n", account)
		return nil
	},
}

func init() {
	passwordCmd.PersistentFlags().StringVarP(&passwordUser, "user", "u", "", "login name (default: the device's user)")
	passwordDeleteCmd.Flags().BoolVarP(&passwordYes, "yes", "y", false, "do not ask for confirmation")
	passwordCmd.AddCommand(passwordSetCmd, passwordDeleteCmd)
	rootCmd.AddCommand(passwordCmd)
}
