package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete [recording-id]",
	Short: "Delete a recording and its audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		id := args[0]

		rec, err := svc.Recording(ctx, id)
		if err != nil {
			return err
		}

		if !deleteForce {
			fmt.Printf("Delete %s (%s)? [y/N] ", rec.Filename, formatSize(rec.FileSize))
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := svc.DeleteRecording(ctx, id); err != nil {
			return fmt.Errorf("failed to delete recording: %w", err)
		}
		fmt.Printf("Deleted %s\n", rec.Filename)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "delete without confirmation")
}
