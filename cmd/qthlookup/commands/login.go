package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

var loginUsername string

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "HamQTH username, prompted for when empty.")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func askCredentials() (string, string, error) {
	ui := &input.UI{Writer: os.Stderr, Reader: os.Stdin}

	username := loginUsername
	if username == "" {
		var err error
		username, err = ui.Ask("HamQTH username:", &input.Options{
			Required:  true,
			Loop:      true,
			HideOrder: true,
		})
		if err != nil {
			return "", "", err
		}
	}
	password, err := ui.Ask("HamQTH password:", &input.Options{
		Required:  true,
		Loop:      true,
		HideOrder: true,
		Mask:      true,
	})
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

var loginCmd = &cobra.Command{
	Use:   "login [--username <callsign>]",
	Short: "Stores HamQTH credentials and checks them by logging in.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		username, password, err := askCredentials()
		if err != nil {
			return err
		}
		err = e.client.SetLoginInfo(username, password)
		if err != nil {
			return err
		}
		_, err = e.client.Authenticate(cmd.Context())
		if err != nil {
			return err
		}

		if !*e.cfg.StoreCredentials {
			slog.Warn("store_credentials is disabled, the login only lasted for this command")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Deletes the stored HamQTH credentials.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return e.client.Logout()
	},
}
