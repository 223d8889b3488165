package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Match a local image against the registered cases",
	Long: `Extracts the face from a local image and prints the closest registered cases.
No alert is sent unless --alert is given, in which case a single match is
enough to notify the case contact.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("gender", "", "Gender of the person in the image, used to filter candidates")
	scanCmd.Flags().Bool("alert", false, "Send an alert for the top match")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	img, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sendAlert := mustGetBool(cmd, "alert")
	var transport alert.Transport = alert.NopTransport{}
	if sendAlert {
		if transport, err = newTransport(&a.cfg.Alert, a.log); err != nil {
			return err
		}
	}
	dispatcher := alert.NewDispatcher(transport, a.cfg.Alert.Timeout, a.log, nil)

	scanner := service.NewScanner(service.ScannerDeps{
		Extractor:  newExtractor(a.cfg, a.log),
		Cases:      a.cases,
		Matcher:    facematch.NewMatcher(a.cfg.Match.Profile),
		Confirmer:  facematch.NewConfirmer(1, 0),
		Dispatcher: dispatcher,
		Log:        a.log,
	})

	result, err := scanner.Scan(ctx, service.ScanRequest{Image: img, Gender: mustGetString(cmd, "gender")})
	if err != nil {
		return fmt.Errorf("%s: %w", service.UserMessage(err), err)
	}

	fmt.Printf("Detector: %s\n", result.Detector)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	for _, r := range result.Results {
		marker := " "
		if r.Matched {
			marker = "*"
		}
		fmt.Printf("%s #%-6d %-32s distance %.4f (%.1f%%)\n",
			marker, r.CaseID, r.Name, r.Score, alert.SimilarityPercent(r.Score))
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Alert.Timeout+time.Second)
	defer cancel()
	if err := dispatcher.Wait(waitCtx); err != nil {
		return fmt.Errorf("waiting for alert delivery: %w", err)
	}
	if sendAlert && result.Confirmation.Decision == facematch.DecisionFire {
		fmt.Printf("Alert dispatched for case #%d\n", result.Confirmation.CaseID)
	}
	return nil
}
