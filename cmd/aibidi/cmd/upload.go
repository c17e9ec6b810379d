package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/aibidi/aibidi/pkg/client"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files and print their server-side paths",
	Long: `Upload sends local files to the server and prints the path each one was
stored under. Uploaded files are deleted by the server shortly afterwards.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, accessKey)

		for _, file := range args {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			path, err := c.UploadFile(ctx, file)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", file, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	addClientFlags(uploadCmd)
	rootCmd.AddCommand(uploadCmd)
}
