package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/jansevak/internal/auth"
	"github.com/dharsanguruparan/jansevak/internal/complaint"
	"github.com/dharsanguruparan/jansevak/internal/config"
	"github.com/dharsanguruparan/jansevak/internal/database"
	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/queue"
	"github.com/dharsanguruparan/jansevak/internal/repository"
)

// cliActor is the admin identity used for triage from the command line.
var cliActor = model.Actor{ID: "cli", Role: model.RoleAdmin}

func newTokenCmd() *cobra.Command {
	var user, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JANSEVAK_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Load has applied .env by now.
			if os.Getenv("JANSEVAK_JWT_SECRET") == "" {
				return fmt.Errorf("JANSEVAK_JWT_SECRET must be set to mint tokens the server accepts")
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			issuer := auth.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, ttl)
			token, err := issuer.Issue(model.Actor{ID: user, Role: model.ParseRole(strings.ToUpper(role))})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "USER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JANSEVAK_TOKEN_TTL)")
	return cmd
}

func newComplaintsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "Triage complaints stored in Postgres",
	}

	var user string
	list := &cobra.Command{
		Use:   "list",
		Short: "List complaints in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *complaint.Service) error {
				var (
					items []model.Complaint
					err   error
				)
				if user != "" {
					items, err = svc.ListMine(cmd.Context(), model.Actor{ID: user, Role: model.RoleUser})
				} else {
					items, err = svc.ListAll(cmd.Context(), cliActor)
				}
				if err != nil {
					return err
				}
				return printComplaints(cmd.OutOrStdout(), items)
			})
		},
	}
	list.Flags().StringVar(&user, "user", "", "Only show complaints filed by this user id")

	status := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a complaint to PENDING, IN_PROGRESS or RESOLVED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *complaint.Service) error {
				updated, err := svc.UpdateStatus(cmd.Context(), cliActor, args[0], model.Status(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.ID, updated.Status)
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count complaints per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *complaint.Service) error {
				counts, err := svc.Stats(cmd.Context(), cliActor)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, s := range model.Statuses {
					fmt.Fprintf(w, "%s\t%d\n", s, counts.Get(s))
				}
				fmt.Fprintf(w, "TOTAL\t%d\n", counts.Total())
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(list, status, stats)
	return cmd
}

// withService opens the production database and queue, runs fn, and closes
// both. Status changes made here notify citizens the same way the API does.
func withService(ctx context.Context, fn func(*complaint.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	svc := complaint.NewService(repository.NewComplaintRepository(pool), complaint.WithNotifier(queue.NewClient(client)))
	return fn(svc)
}

func printComplaints(out io.Writer, items []model.Complaint) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUSER\tCREATED\tTITLE")
	for _, c := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Status, c.UserID, c.CreatedAt.Format(time.RFC3339), c.Title)
	}
	return w.Flush()
}
