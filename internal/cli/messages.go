package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukasz-falda/libruscli/internal/api"
)

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Message operations",
	}
	cmd.AddCommand(newMessagesListCmd())
	cmd.AddCommand(newMessagesReadCmd())
	return cmd
}

func newMessagesListCmd() *cobra.Command {
	var (
		folderName string
		refresh    bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := api.ParseFolder(folderName)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !a.LoggedIn() {
				return fmt.Errorf("not logged in; run 'libruscli login'")
			}

			if offline {
				a.SetOnline(cmd.Context(), false)
			}

			_, err = a.LoadFolder(cmd.Context(), folder, refresh)
			return err
		},
	}

	cmd.Flags().StringVar(&folderName, "folder", string(api.FolderReceived), "Folder to list (received or sent)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Skip the saved snapshot and fetch fresh")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use only saved messages, never the network")

	return cmd
}

func newMessagesReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Read a message by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !a.LoggedIn() {
				return fmt.Errorf("not logged in; run 'libruscli login'")
			}

			_, err = a.OpenMessage(cmd.Context(), args[0])
			return err
		},
	}
	return cmd
}
