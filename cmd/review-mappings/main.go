package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"contractor-sync/internal/config"
	"contractor-sync/internal/db"
	"contractor-sync/internal/deel"
	"contractor-sync/internal/logger"
	"contractor-sync/internal/repository"
	"contractor-sync/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	listOnly := flag.Bool("list", false, "show all active mappings instead of reviewing")
	reviewer := flag.String("reviewer", "manual_review", "name recorded on verified mappings")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Quiet logging: this is an interactive terminal tool
	cfg.Logger.Level = "warn"
	logger.Init(cfg.Logger)

	ctx := context.Background()
	database, err := db.NewDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	mappingRepo := repository.NewMappingRepository(database.Pool)
	reviews := service.NewReviewService(mappingRepo, deel.NewClient(cfg.Deel))

	if *listOnly {
		if err := showAllMappings(ctx, reviews); err != nil {
			log.Fatalf("Failed to list mappings: %v", err)
		}
		return
	}

	if err := reviewPending(ctx, reviews, *reviewer); err != nil {
		log.Fatalf("Review failed: %v", err)
	}
}

func reviewPending(ctx context.Context, reviews *service.ReviewService, reviewer string) error {
	pending, err := reviews.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("\nNo matches pending review - all done!")
		return nil
	}

	divider := strings.Repeat("=", 80)
	fmt.Printf("\n%s\n", divider)
	fmt.Printf("You have %d matches that need your review\n", len(pending))
	fmt.Printf("%s\n", divider)

	reader := bufio.NewReader(os.Stdin)
	approved, rejected := 0, 0

	for i, mapping := range pending {
		printMapping(i+1, len(pending), mapping)

		fmt.Print("Do these match? (y=approve, n=reject, s=skip): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y":
			if _, err := reviews.Approve(ctx, mapping.HarvestUserID, reviewer); err != nil {
				return err
			}
			fmt.Println("Approved and external_id set in Deel")
			approved++
		case "n":
			if _, err := reviews.Reject(ctx, mapping.HarvestUserID, reviewer); err != nil {
				return err
			}
			fmt.Println("Rejected - this mapping will be deactivated")
			rejected++
		default:
			fmt.Println("Skipped - will remain in review queue")
		}
	}

	fmt.Printf("\n%s\n", divider)
	fmt.Println("Review Complete!")
	fmt.Printf("Approved: %d\n", approved)
	fmt.Printf("Rejected: %d\n", rejected)
	fmt.Printf("Skipped:  %d\n", len(pending)-approved-rejected)
	fmt.Printf("%s\n\n", divider)
	return nil
}

func printMapping(n, total int, m repository.Mapping) {
	divider := strings.Repeat("-", 80)
	fmt.Printf("\n%s\n", divider)
	fmt.Printf("Match %d of %d\n", n, total)
	fmt.Printf("%s\n", divider)
	fmt.Printf("\nConfidence: %.1f%%\n", m.ConfidenceScore*100)
	fmt.Println("\nHarvest User:")
	fmt.Printf("   Name:  %s\n", strOrDash(m.HarvestName))
	fmt.Printf("   Email: %s\n", strOrDash(m.HarvestEmail))
	fmt.Printf("   ID:    %s\n", m.HarvestUserID)
	fmt.Println("\nDeel Contract:")
	fmt.Printf("   Name:  %s\n", strOrDash(m.DeelName))
	fmt.Printf("   Email: %s\n", strOrDash(m.DeelEmail))
	fmt.Printf("   ID:    %s\n", m.DeelContractID)

	if m.MatchSignals != nil {
		fmt.Println("\nMatch Details:")
		emailMatch := "no"
		if m.MatchSignals.EmailMatch == 1.0 {
			emailMatch = "yes"
		}
		fmt.Printf("   Email Match:     %s\n", emailMatch)
		fmt.Printf("   Name Similarity: %.1f%%\n", m.MatchSignals.NameSimilarity*100)
		fmt.Printf("   Matched Against: %s\n", m.MatchSignals.MatchedAgainst)
	}
	fmt.Printf("\n%s\n", divider)
}

func showAllMappings(ctx context.Context, reviews *service.ReviewService) error {
	mappings, err := reviews.ListActive(ctx)
	if err != nil {
		return err
	}

	divider := strings.Repeat("=", 80)
	fmt.Printf("\n%s\n", divider)
	fmt.Printf("All User Mappings (%d total)\n", len(mappings))
	fmt.Printf("%s\n\n", divider)

	for _, m := range mappings {
		fmt.Printf("[%-14s] %-25s <-> %-25s (%.0f%%)\n",
			m.VerificationStatus,
			truncate(strOrDash(m.HarvestName), 25),
			truncate(strOrDash(m.DeelName), 25),
			m.ConfidenceScore*100)
	}

	fmt.Printf("\n%s\n\n", divider)
	return nil
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
