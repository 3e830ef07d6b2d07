package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/workflowguard/workflowguard/infrastructure/http/validator"
	"github.com/workflowguard/workflowguard/infrastructure/service/apikey"
	"github.com/workflowguard/workflowguard/infrastructure/service/jwt"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
	"github.com/workflowguard/workflowguard/internal/usecase"
)

// VersionService is the part of the version use case the CLI drives.
type VersionService interface {
	CreateAutomatedBackup(ctx context.Context, workflowID, userID string) (*domain.WorkflowVersion, error)
	FindHistory(ctx context.Context, workflowID string, limit int) ([]*usecase.VersionSummary, error)
	RollbackWorkflow(ctx context.Context, workflowID, userID string) (*usecase.RollbackResult, error)
}

type ComplianceService interface {
	GenerateComplianceReport(ctx context.Context, workflowID string, start, end time.Time) (*domain.ComplianceReport, error)
}

// Backend is what the data commands operate on. Close releases connections.
type Backend struct {
	Versions   VersionService
	Compliance ComplianceService
	Close      func() error
}

// BackendFactory opens a Backend. It is only called by commands that need one.
type BackendFactory func(ctx context.Context) (*Backend, error)

// NewRootCommand builds the workflowguard command tree.
func NewRootCommand(open BackendFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "workflowguard",
		Short:         "Workflow version history, backups and compliance reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(
		newBackupCommand(open),
		newHistoryCommand(open),
		newRollbackCommand(open),
		newReportCommand(open),
		newTokenCommand(),
		newHashKeyCommand(),
	)
	return rootCmd
}

// Execute runs the command tree and reports errors on stderr.
func Execute(open BackendFactory) int {
	rootCmd := NewRootCommand(open)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func withBackend(cmd *cobra.Command, open BackendFactory, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	if backend.Close != nil {
		defer backend.Close()
	}
	return fn(ctx, backend)
}

func requireWorkflow(cmd *cobra.Command) (string, error) {
	workflowID, _ := cmd.Flags().GetString("workflow")
	if !validator.ValidateRequired(workflowID) {
		return "", errors.New("--workflow is required")
	}
	return workflowID, nil
}

func newBackupCommand(open BackendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create an automated backup of a workflow's latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := requireWorkflow(cmd)
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				version, err := b.Versions.CreateAutomatedBackup(ctx, workflowID, domain.SystemActor)
				if errors.Is(err, domain.ErrNoVersionToBackup) {
					fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s has no versions, nothing to back up\n", workflowID)
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to create backup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created backup version %d (%s) for workflow %s\n",
					version.VersionNumber, version.ID, workflowID)
				return nil
			})
		},
	}
	cmd.Flags().String("workflow", "", "workflow ID")
	return cmd
}

func newHistoryCommand(open BackendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the version history of a workflow, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := requireWorkflow(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				history, err := b.Versions.FindHistory(ctx, workflowID, limit)
				if err != nil {
					return fmt.Errorf("failed to load history: %w", err)
				}
				printHistory(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
	cmd.Flags().String("workflow", "", "workflow ID")
	cmd.Flags().Int("limit", 0, "maximum number of versions (0 uses the configured default)")
	return cmd
}

func printHistory(out io.Writer, history []*usecase.VersionSummary) {
	if len(history) == 0 {
		fmt.Fprintln(out, "No versions found.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tTYPE\tCREATED BY\tCREATED AT\tCHANGES\tSTATUS")
	for _, v := range history {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.VersionNumber, v.SnapshotType, v.CreatedByName, v.CreatedAt.Format(time.RFC3339), v.ChangeSummary, v.Status)
	}
	tw.Flush()
}

func newRollbackCommand(open BackendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll a workflow back to its previous version",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := requireWorkflow(cmd)
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("user")
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				result, err := b.Versions.RollbackWorkflow(ctx, workflowID, actor)
				if err != nil {
					return fmt.Errorf("failed to roll back: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return nil
			})
		},
	}
	cmd.Flags().String("workflow", "", "workflow ID")
	cmd.Flags().String("user", domain.SystemActor, "acting user ID")
	return cmd
}

func newReportCommand(open BackendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a compliance report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := requireWorkflow(cmd)
			if err != nil {
				return err
			}
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			start, err := validator.ParseDate(fromStr, false)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := validator.ParseDate(toStr, true)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				report, err := b.Compliance.GenerateComplianceReport(ctx, workflowID, start, end)
				if err != nil {
					return fmt.Errorf("failed to generate report: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	cmd.Flags().String("workflow", "", "workflow ID")
	cmd.Flags().String("from", "", "period start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().String("to", "", "period end (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			plan, _ := cmd.Flags().GetString("plan")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if !validator.ValidateRequired(userID) {
				return errors.New("--user is required")
			}
			switch role {
			case ports.RoleUser, ports.RoleAdmin:
			default:
				return fmt.Errorf("unsupported role %q", role)
			}

			tokens, err := jwt.NewJWTService(os.Getenv("JWT_SECRET"), "HS256", ttl)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateAccessToken(ports.TokenClaims{UserID: userID, Email: email, Role: role, Plan: plan})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user ID")
	cmd.Flags().String("email", "", "user email")
	cmd.Flags().String("role", ports.RoleUser, "user or admin")
	cmd.Flags().String("plan", "", "subscription plan")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	return cmd
}

// newHashKeyCommand prints a bcrypt hash for SCHEDULER_API_KEY_HASH. Without
// --key a random key is generated and printed alongside.
func newHashKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Hash a scheduler API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			cost, _ := cmd.Flags().GetInt("cost")

			out := cmd.OutOrStdout()
			if key == "" {
				generated, err := apikey.Generate()
				if err != nil {
					return err
				}
				key = generated
				fmt.Fprintf(out, "key:  %s\n", key)
			}

			hash, err := apikey.Hash(key, cost)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "hash: %s\n", hash)
			return nil
		},
	}
	cmd.Flags().String("key", "", "key to hash")
	cmd.Flags().Int("cost", 12, "bcrypt cost")
	return cmd
}
