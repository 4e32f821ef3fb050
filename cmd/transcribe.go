package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/audioscribelab/meetscribe/internal/store"
)

var transcribeLanguage string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [recording-id|file]",
	Short: "Transcribe a stored recording or an audio file",
	Long: `Transcribe a recording from the library, or any WAV file when given a
path. On the first run the local backend installs openai-whisper and
downloads the model, which can take a while.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		var tr *store.Transcription
		if _, statErr := os.Stat(args[0]); statErr == nil {
			tr, err = svc.TranscribeFile(cmd.Context(), args[0], transcribeLanguage)
		} else {
			tr, err = svc.Transcribe(cmd.Context(), args[0], transcribeLanguage)
		}
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}

		if tr.Confidence != nil {
			log.Infow("transcription complete",
				"language", tr.Language, "confidence", *tr.Confidence)
		}
		fmt.Println(tr.Text)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeLanguage, "language", "l", "", "language code (default from config)")
}
