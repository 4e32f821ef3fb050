package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var recordTranscribe bool

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone until interrupted",
	Long: `Record audio from the configured input device. The recording runs
until Ctrl+C and is then saved to the library. With --transcribe the
new recording is transcribed right away.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()

		sessionID, err := svc.StartRecording(ctx)
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		log.Infow("recording started", "session_id", sessionID)
		fmt.Println("Recording... press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		signal.Stop(sigChan)

		rec, err := svc.StopRecording(ctx)
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		fmt.Printf("Saved %s (%s, %s)\n", rec.Filename, formatDuration(rec.Duration), formatSize(rec.FileSize))
		fmt.Printf("ID: %s\n", rec.ID)

		if !recordTranscribe {
			return nil
		}

		fmt.Println("Transcribing...")
		tr, err := svc.Transcribe(ctx, rec.ID, "")
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}
		fmt.Println()
		fmt.Println(tr.Text)
		return nil
	},
}

func init() {
	recordCmd.Flags().BoolVarP(&recordTranscribe, "transcribe", "t", false, "transcribe the recording after saving")
}

func formatDuration(seconds *int64) string {
	if seconds == nil {
		return "unknown length"
	}
	s := *seconds
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", s/60, s%60)
}

func formatSize(bytes *int64) string {
	if bytes == nil {
		return "unknown size"
	}
	b := *bytes
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
