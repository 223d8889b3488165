package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and embedding profile information",
	Long: `Print the build metadata together with the configured embedding profile.
Stored embeddings are only comparable with probes produced by the same
profile, so the signature is useful when checking a deployment.`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), config.Load().Match.Profile)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer, profile facematch.Profile) {
	fmt.Fprintf(w, "facewatch %s\n", Version)
	fmt.Fprintf(w, "  Commit:  %s\n", CommitSHA)
	fmt.Fprintf(w, "  Built:   %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Profile: %s (threshold %.2f)\n", profile.Signature(), profile.Threshold)
}
