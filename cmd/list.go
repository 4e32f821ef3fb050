package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listShowTranscripts bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings in the library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		recordings, err := svc.Recordings(ctx)
		if err != nil {
			return fmt.Errorf("failed to list recordings: %w", err)
		}
		if len(recordings) == 0 {
			fmt.Println("No recordings yet.")
			return nil
		}

		for _, rec := range recordings {
			fmt.Printf("%s  %s  %s  %s\n",
				rec.ID,
				rec.CreatedAt.Local().Format("2006-01-02 15:04"),
				formatDuration(rec.Duration),
				formatSize(rec.FileSize))

			if !listShowTranscripts {
				continue
			}
			transcripts, err := svc.Transcriptions(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("failed to load transcriptions: %w", err)
			}
			for _, tr := range transcripts {
				fmt.Printf("    [%s] %s\n", tr.Status, preview(tr.Text, 60))
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listShowTranscripts, "transcripts", "t", false, "show transcription status per recording")
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
