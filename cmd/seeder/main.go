// cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unclebandit/crm-campaign-service/internal/config"
	"github.com/unclebandit/crm-campaign-service/internal/db"
	"github.com/unclebandit/crm-campaign-service/internal/middleware"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/repository"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seeder",
		Short: "Database and token utilities for the campaign service",
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Println("Schema applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		tenantID  string
		customers int
		seed      int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo customers and segments for one tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			return seedTenant(cmd.Context(),
				&repository.CustomerRepository{DB: conn},
				&repository.SegmentRepository{DB: conn},
				tenantID, customers, rand.New(rand.NewSource(seed)))
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id to seed (required)")
	cmd.Flags().IntVar(&customers, "customers", 50, "number of customers to create")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for generated data")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

var (
	firstNames = []string{"Anil", "Grace", "Wanjiru", "Otieno", "Amina", "Kofi", "", "Mei"}
	lastNames  = []string{"Kumar", "Mwangi", "Achieng", "Mensah", "Hassan", "", "Chen"}
)

func seedTenant(ctx context.Context, customers repository.CustomerRepositoryInterface, segments repository.SegmentRepositoryInterface, tenantID string, n int, rng *rand.Rand) error {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		lastActive := now.AddDate(0, 0, -rng.Intn(120))
		c := &model.Customer{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			FirstName:      first,
			LastName:       last,
			Email:          fmt.Sprintf("customer%03d@example.com", i),
			Phone:          fmt.Sprintf("+2547%08d", rng.Intn(100000000)),
			TotalSpend:     float64(rng.Intn(200000)) / 100,
			Visits:         rng.Intn(40),
			LastActiveDate: &lastActive,
			CreatedAt:      now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := customers.Create(ctx, c); err != nil {
			return fmt.Errorf("seed customer %d: %w", i, err)
		}
	}

	demo := []model.Segment{
		{
			Name:      "High spenders",
			LogicType: model.LogicAnd,
			Conditions: model.ConditionSet{
				"totalSpend": {Operator: model.OpGreaterThan, Value: 1000},
			},
		},
		{
			Name:      "Frequent or recent",
			LogicType: model.LogicOr,
			Conditions: model.ConditionSet{
				"visits":         {Operator: model.OpGreaterOrEqual, Value: 20},
				"lastActiveDate": {Operator: model.OpGreaterOrEqual, Value: now.AddDate(0, 0, -30).Format("2006-01-02")},
			},
		},
	}
	for i := range demo {
		s := demo[i]
		s.ID = uuid.NewString()
		s.TenantID = tenantID
		s.CreatedAt, s.UpdatedAt = now, now
		if err := segments.Create(ctx, &s); err != nil {
			return fmt.Errorf("seed segment %q: %w", s.Name, err)
		}
		fmt.Printf("Segment %s: %s\n", s.Name, s.ID)
	}

	fmt.Printf("Seeded %d customers for tenant %s\n", n, tenantID)
	return nil
}

func tokenCmd() *cobra.Command {
	var (
		tenantID string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token scoped to a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			token, err := middleware.NewTenantAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(tenantID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id claim (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
