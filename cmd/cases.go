package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/spf13/cobra"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect and manage registered cases",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered cases, most recent first",
	RunE:  runCasesList,
}

var casesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one case",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesShow,
}

var casesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a case and its reference photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesDelete,
}

var casesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show case counts",
	RunE:  runCasesStats,
}

func init() {
	rootCmd.AddCommand(casesCmd)
	casesCmd.AddCommand(casesListCmd, casesShowCmd, casesDeleteCmd, casesStatsCmd)

	casesListCmd.Flags().Int("limit", 50, "Maximum number of cases to list (0 = all)")
	casesListCmd.Flags().Int("offset", 0, "Number of cases to skip")
}

func parseCaseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid case id %q", arg)
	}
	return id, nil
}

// embeddingState describes the embedding of a case relative to the active profile.
func embeddingState(c *database.Case, signature string) string {
	switch {
	case !c.HasEmbedding():
		return "pending"
	case c.EmbeddingProfile != signature:
		return "stale"
	default:
		return "ok"
	}
}

func runCasesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cases, err := a.cases.ListCases(ctx, database.ListOptions{
		Limit:  mustGetInt(cmd, "limit"),
		Offset: mustGetInt(cmd, "offset"),
	})
	if err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}
	if len(cases) == 0 {
		fmt.Println("No cases registered")
		return nil
	}

	signature := a.cfg.Match.Profile.Signature()
	fmt.Printf("%-7s %-32s %-8s %-10s %-8s %s\n", "ID", "NAME", "GENDER", "MISSING", "EMBED", "REPORTED")
	for i := range cases {
		c := &cases[i]
		missing := "-"
		if !c.MissingDate.IsZero() {
			missing = c.MissingDate.Format("2006-01-02")
		}
		fmt.Printf("%-7d %-32s %-8s %-10s %-8s %s\n",
			c.ID, c.Name, c.Gender, missing, embeddingState(c, signature), c.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runCasesShow(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.cases.GetCase(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get case: %w", err)
	}
	if c == nil {
		return database.ErrCaseNotFound
	}

	fmt.Printf("Case #%d: %s\n", c.ID, c.Name)
	fmt.Printf("  Gender:      %s\n", c.Gender)
	fmt.Printf("  Age:         %d\n", c.Age)
	fmt.Printf("  Location:    %s, %s %s\n", c.City, c.State, c.PinCode)
	if !c.MissingDate.IsZero() {
		fmt.Printf("  Missing:     %s\n", c.MissingDate.Format("2006-01-02 15:04"))
	}
	fmt.Printf("  Complainant: %s (%s) %s\n", c.ComplainantName, c.Relationship, c.ContactPhone)
	fmt.Printf("  Status:      %s\n", c.Status)
	fmt.Printf("  Embedding:   %s", embeddingState(c, a.cfg.Match.Profile.Signature()))
	if c.HasEmbedding() {
		fmt.Printf(" (%s, %d dims, %s)", c.EmbeddingProfile, len(c.Embedding), c.EmbeddedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
	if c.Description != "" {
		fmt.Printf("  Description: %s\n", c.Description)
	}
	return nil
}

func runCasesDelete(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := service.NewCaseService(service.CaseServiceDeps{
		Cases:  a.cases,
		Images: a.images,
		Log:    a.log,
	})
	if err := svc.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrCaseNotFound) {
			return fmt.Errorf("case #%d not found", id)
		}
		return fmt.Errorf("failed to delete case: %w", err)
	}
	fmt.Printf("Deleted case #%d\n", id)
	return nil
}

func runCasesStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.cases.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}
	fmt.Printf("Cases:          %d\n", stats.Total)
	fmt.Printf("With embedding: %d\n", stats.WithEmbedding)
	fmt.Printf("Pending:        %d\n", stats.Pending)
	for _, m := range stats.ByMonth {
		fmt.Printf("  %s  %d\n", m.Month, m.Count)
	}
	return nil
}
