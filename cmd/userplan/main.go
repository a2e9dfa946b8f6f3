package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/infra"
	"server/internal/sqlinline"
)

// userplan flips a user's plan and optionally resets their download counter.
// The reset also exists for operators to start a fresh quota period by hand.
func main() {
	var (
		idFlag    string
		emailFlag string
		planFlag  string
		resetFlag bool
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&planFlag, "plan", "pro", "plan to assign (free, pro)")
	flag.BoolVar(&resetFlag, "reset-counter", false, "reset the user's download counter to zero")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	plan := strings.TrimSpace(strings.ToLower(planFlag))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	switch plan {
	case "free", "pro":
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", plan))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userplan").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	lookupCtx, cancelLookup := context.WithTimeout(context.Background(), 5*time.Second)
	var foundID, foundEmail, foundPlan string
	var scanErr error
	if userID != "" {
		scanErr = runner.QueryRow(lookupCtx, sqlinline.QSelectUserPlanByID, userID).
			Scan(&foundID, &foundEmail, &foundPlan)
	} else {
		scanErr = runner.QueryRow(lookupCtx, sqlinline.QSelectUserPlanByEmail, email).
			Scan(&foundID, &foundEmail, &foundPlan)
	}
	cancelLookup()
	if scanErr != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", scanErr))
	}

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	var updatedID, updatedEmail, updatedPlan string
	if err := runner.QueryRow(updateCtx, sqlinline.QUpdateUserPlan, foundID, plan).
		Scan(&updatedID, &updatedEmail, &updatedPlan); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	if resetFlag {
		var count int
		if err := runner.QueryRow(updateCtx, sqlinline.QResetDownloadCounter, foundID).Scan(&count); err != nil {
			exitWithError(fmt.Errorf("failed to reset download counter: %w", err))
		}
		fmt.Printf("download counter for %s reset to %d\n", updatedEmail, count)
	}

	fmt.Printf("user %s (%s) now on plan %q (was %q)\n", updatedEmail, updatedID, updatedPlan, foundPlan)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "userplan:", err)
	os.Exit(1)
}
