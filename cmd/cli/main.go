package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smallwat3r/secretdrop/internal/utility"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var server string

	root := &cobra.Command{
		Use:           "secretdrop",
		Short:         "Share self-destructing messages and files",
		Long:          "Encrypts messages and files locally, stores them on a secretdrop server and reads them back.\nThe server address defaults to $SECRETDROP_URL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", "", "server base URL (default $SECRETDROP_URL or "+defaultBaseURL+")")

	baseURL := func() string {
		if server != "" {
			return server
		}
		return utility.Getenv("SECRETDROP_URL", defaultBaseURL)
	}

	root.AddCommand(newCreateCmd(baseURL), newReadCmd(baseURL), newDeleteCmd(baseURL))
	return root
}
