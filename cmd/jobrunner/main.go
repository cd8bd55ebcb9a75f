package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/videditor/jobrunner/cmd/jobrunner/commands"
)

var rootCmd = &cobra.Command{
	Use:   "jobrunner",
	Short: "Background job runner for the video processing pipeline",
	Long: `jobrunner - background worker for video processing.

The runner polls the processing_jobs queue, claims work with
FOR UPDATE SKIP LOCKED, and executes the project workflow:
thumbnail generation, transcription, and AI-driven short creation.

Examples:
  jobrunner run              # Start the worker in the foreground
  jobrunner status           # Show queue depth per status
  jobrunner version          # Print build information`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
