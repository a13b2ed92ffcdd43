// planctl is the operator tool for plan and credit administration: inspect
// a user's balance, change plans, and hand-grant credits when a payment
// event's grant failed and the purchase record needs reconciling.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"server/internal/adapter/repo"
	"server/internal/credit"
	"server/internal/domain"
	"server/internal/infra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Inspect and administer user plans and credit balances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(userCmd(), setPlanCmd(), grantCmd(), purchasesCmd())
	return root
}

// withPool loads config, opens a pool and runs fn with a deadline.
func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool)
}

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <email>",
		Short: "Show a user's plan and remaining credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				user, err := repo.NewUserRepository(pool).GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}
				engine := credit.NewEngine(repo.NewLedgerRepository(pool), infra.NewLogger("cli"))
				available, err := engine.Available(ctx, user.ID, user.Plan)
				if err != nil {
					return fmt.Errorf("read balance: %w", err)
				}
				periodStart, resetAt := credit.ResolveWindow(user.Plan, time.Now())
				fmt.Printf("id:        %s\n", user.ID)
				fmt.Printf("email:     %s\n", user.Email)
				fmt.Printf("plan:      %s (capacity %d)\n", user.Plan, user.Plan.Credits())
				fmt.Printf("available: %d\n", available)
				fmt.Printf("window:    %s .. %s\n", periodStart.Format(time.RFC3339), resetAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func setPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setplan <email> <FREE|PLUS|PRO>",
		Short: "Set a user's billing plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := domain.Plan(args[1])
			if !plan.Valid() {
				return fmt.Errorf("%w: %q", domain.ErrUnsupportedPlan, args[1])
			}
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				users := repo.NewUserRepository(pool)
				user, err := users.GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}
				if err := users.UpdatePlan(ctx, user.ID, plan); err != nil {
					return err
				}
				fmt.Printf("plan for %s: %s -> %s\n", user.Email, user.Plan, plan)
				return nil
			})
		},
	}
}

func grantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <email> <credits>",
		Short: "Grant credits into the user's current window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("credits must be a positive integer, got %q", args[1])
			}
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				user, err := repo.NewUserRepository(pool).GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}
				engine := credit.NewEngine(repo.NewLedgerRepository(pool), infra.NewLogger("cli"))
				if err := engine.GrantCredits(ctx, user.ID, user.Plan, amount); err != nil {
					return err
				}
				available, err := engine.Available(ctx, user.ID, user.Plan)
				if err != nil {
					return err
				}
				fmt.Printf("granted %d credits to %s (now available: %d)\n", amount, user.Email, available)
				return nil
			})
		},
	}
}

func purchasesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "purchases <email>",
		Short: "List a user's recent purchases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				user, err := repo.NewUserRepository(pool).GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}
				items, err := repo.NewPurchaseRepository(pool).ListByUser(ctx, user.ID, limit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Println("no purchases")
					return nil
				}
				for _, p := range items {
					fmt.Printf("%s  %-25s  paid=%-8d granted=%-10d ref=%s\n",
						p.CreatedAt.Format("2006-01-02 15:04"), p.ProductType, p.AmountPaid, p.CreditsGranted, p.ProviderRef)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to list")
	return cmd
}
