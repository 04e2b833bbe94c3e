package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukasz-falda/libruscli/internal/api"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session and cache status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", a.Config.APIURL)

			if a.LoggedIn() {
				fmt.Fprintln(out, "Session: active")
			} else {
				fmt.Fprintln(out, "Session: none")
			}

			for _, folder := range []api.Folder{api.FolderReceived, api.FolderSent} {
				age, ok := a.Cache.Age(folder)
				if !ok {
					fmt.Fprintf(out, "Cache %s: empty\n", folder)
					continue
				}
				stale := ""
				if age > a.Config.CacheTTL {
					stale = " (stale)"
				}
				fmt.Fprintf(out, "Cache %s: %s old%s\n", folder, age.Round(time.Second), stale)
			}
			return nil
		},
	}
	return cmd
}
