package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var (
		username string
		password string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and load the inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			if username == "" || password == "" {
				// Remembered credentials pre-fill the prompts.
				stored, hasStored := a.Session.Credentials()

				if username == "" {
					username, err = promptUsername(cmd, stored.Username, hasStored)
					if err != nil {
						return err
					}
				}
				if password == "" {
					if hasStored && stored.Username == username {
						password = stored.Password
					} else {
						password, err = promptPassword(cmd)
						if err != nil {
							return err
						}
					}
				}
			}

			if username == "" {
				return fmt.Errorf("username is required")
			}

			if err := a.Login(cmd.Context(), username, password, remember); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&remember, "remember", false, "Remember the login for next time")

	return cmd
}

func promptUsername(cmd *cobra.Command, stored string, hasStored bool) (string, error) {
	if hasStored && stored != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Username [%s]: ", stored)
	} else {
		fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	entered := strings.TrimSpace(line)
	if entered == "" {
		return stored, nil
	}
	return entered, nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
