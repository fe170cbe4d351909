package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mur-run/murdev/internal/cloud"
)

var sttCmd = &cobra.Command{
	Use:   "stt <file.flac>",
	Short: "Transcribe a FLAC recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runSTT,
}

var (
	sttLang  string
	sttLimit int
)

func init() {
	rootCmd.AddCommand(sttCmd)
	sttCmd.Flags().StringVar(&sttLang, "lang", "en-US", "spoken language")
	sttCmd.Flags().IntVar(&sttLimit, "limit", 1, "maximum number of alternatives")
}

func runSTT(cmd *cobra.Command, args []string) error {
	audio, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	b, _, err := openBackend()
	if err != nil {
		return err
	}
	res, err := cloud.NewSTTAPI(b).Transcribe(cmd.Context(), audio, sttLang, sttLimit)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}
