package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/app"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/repo"
)

func jobOrderCmd() *cobra.Command {
	jo := &cobra.Command{Use: "joborder", Aliases: []string{"jo"}, Short: "Manage job orders"}
	jo.AddCommand(jobOrderCreateCmd(), jobOrderListCmd(), jobOrderShowCmd(), jobOrderStatusCmd())
	return jo
}

func jobOrderCreateCmd() *cobra.Command {
	var in engine.JobOrderInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				jo, err := rt.Engine.CreateJobOrder(ctx, in, actor())
				if err != nil {
					return err
				}
				return printJSONOrText(jo, fmt.Sprintf("%s %s (%s)", jo.Number, jo.Title, jo.ID))
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "position title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Department, "department", "", "department")
	cmd.Flags().StringVar(&in.Level, "level", "", "seniority level")
	cmd.Flags().IntVar(&in.Quantity, "quantity", 1, "number of hires wanted")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobOrderListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListJobOrders(ctx, domain.JobOrderStatus(status))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Number", "ID", "Title", "Status", "Hired", "Quantity")
				for _, jo := range items {
					tw.AppendRow(table.Row{jo.Number, jo.ID, jo.Title, jo.Status, jo.HiredCount, jo.Quantity})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func jobOrderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				jo, err := rt.Engine.GetJobOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(jo)
			})
		},
	}
}

func jobOrderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change job order status; pooling pools its active applications",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.SetJobOrderStatus(ctx, args[0], domain.JobOrderStatus(args[1]), actor())
				if err != nil {
					return err
				}
				text := fmt.Sprintf("%s: %s -> %s (notified %s)", res.JobOrder.Number, res.PreviousStatus, res.JobOrder.Status, res.Notification)
				if res.PoolingStarted {
					text += "; pooling active applications"
				}
				return printJSONOrText(res, text)
			})
		},
	}
}

func candidateCmd() *cobra.Command {
	c := &cobra.Command{Use: "candidate", Short: "Manage candidates"}
	c.AddCommand(candidateIngestCmd(), candidateShowCmd())
	return c
}

func candidateIngestCmd() *cobra.Command {
	var (
		in      engine.IngestInput
		score   float64
		applied string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add a candidate to a job order pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("score") {
				in.MatchScore = &score
			}
			if applied != "" {
				t, err := time.Parse(time.RFC3339, applied)
				if err != nil {
					return fmt.Errorf("--applied-at must be RFC3339: %w", err)
				}
				in.AppliedAt = &t
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.IngestCandidate(ctx, in, actor())
				if err != nil {
					return err
				}
				return printJSONOrText(res, fmt.Sprintf("candidate %s application %s (%s)",
					res.Candidate.ID, res.Application.ID, res.Application.PipelineStatus))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.JobOrderID, "job-order", "", "job order id")
	f.StringVar(&in.CandidateID, "candidate-id", "", "link an existing candidate")
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&in.Email, "email", "", "email")
	f.StringVar(&in.Phone, "phone", "", "phone")
	f.StringVar(&in.Source, "source", "cli", "where the CV came from")
	f.Float64Var(&score, "score", 0, "match score within [0,100]")
	f.StringVar(&in.EmploymentType, "employment-type", "", "employment type")
	f.StringVar(&in.Remarks, "remarks", "", "remarks")
	f.StringVar(&applied, "applied-at", "", "application time, RFC3339")
	_ = cmd.MarkFlagRequired("job-order")
	return cmd
}

func candidateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				c, err := rt.Engine.GetCandidate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func applicationCmd() *cobra.Command {
	a := &cobra.Command{Use: "application", Aliases: []string{"app"}, Short: "Move applications through the pipeline"}
	a.AddCommand(applicationListCmd(), applicationShowCmd(), applicationMoveCmd(), applicationPoolCmd(), applicationTimelineCmd())
	return a
}

func applicationListCmd() *cobra.Command {
	var f repo.ApplicationFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.PipelineStatus(status)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListApplications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Candidate", "Job Order", "Status", "Score", "Changed")
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.CandidateID, a.JobOrderID, a.PipelineStatus, formatScore(a.MatchScore), deref(a.StatusChangedDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.JobOrderID, "job-order", "", "job order filter")
	cmd.Flags().StringVar(&f.CandidateID, "candidate", "", "candidate filter")
	cmd.Flags().StringVar(&status, "status", "", "pipeline status filter")
	return cmd
}

func applicationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Engine.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func applicationMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move an application to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Engine.TransitionApplication(ctx, args[0], domain.PipelineStatus(args[1]), actor())
				if err != nil {
					return err
				}
				days := "-"
				if a.DurationDays != nil {
					days = strconv.Itoa(*a.DurationDays)
				}
				return printJSONOrText(a, fmt.Sprintf("%s now %s (previous stage %s days)", a.ID, a.PipelineStatus, days))
			})
		},
	}
}

func applicationPoolCmd() *cobra.Command {
	var opts engine.PoolOptions
	cmd := &cobra.Command{
		Use:   "pool <id>",
		Short: "Move an application into the talent pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PooledBy = actor()
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rec, err := rt.Engine.PoolApplication(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrText(rec, fmt.Sprintf("pooled as %s (from %s)", rec.ID, rec.PooledFromStatus))
			})
		},
	}
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the candidate is pooled")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "curation notes")
	return cmd
}

func applicationTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <id>",
		Short: "Show the stage history of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListTimeline(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("When", "From", "To", "Days", "By", "Notes")
				for _, t := range items {
					from := "-"
					if t.FromStatus != nil {
						from = string(*t.FromStatus)
					}
					days := "-"
					if t.DurationDays != nil {
						days = strconv.Itoa(*t.DurationDays)
					}
					tw.AppendRow(table.Row{t.ChangedDate, from, t.ToStatus, days, t.ChangedBy, t.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func poolCmd() *cobra.Command {
	p := &cobra.Command{Use: "pool", Short: "Curate the talent pool"}
	p.AddCommand(poolListCmd(), poolShowCmd(), poolSummaryCmd(), poolActivateCmd(), poolDispositionCmd(),
		poolBulkCmd(), poolExportCmd(), poolRunCmd())
	return p
}

func addPoolFilterFlags(cmd *cobra.Command, f *repo.PoolFilter, disposition *string) {
	cmd.Flags().StringVar(disposition, "disposition", "", "disposition filter")
	cmd.Flags().StringVar(&f.JobOrderID, "job-order", "", "original job order filter")
	cmd.Flags().StringVar(&f.CandidateID, "candidate", "", "candidate filter")
}

func poolListCmd() *cobra.Command {
	var (
		f           repo.PoolFilter
		disposition string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pooled candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Disposition = domain.Disposition(disposition)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListPooledCandidates(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Candidate", "Original Job Order", "From", "Disposition", "Pooled At")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.CandidateName, p.OriginalJobTitle, p.PooledFromStatus, p.Disposition, p.PooledAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	addPoolFilterFlags(cmd, &f, &disposition)
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max records")
	return cmd
}

func poolShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pooled candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := rt.Engine.GetPooledCandidate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func poolSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count pool records per disposition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				counts, err := rt.Engine.PoolSummary(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable("Disposition", "Count")
				total := 0
				for _, d := range domain.Dispositions {
					tw.AppendRow(table.Row{d, counts[d]})
					total += counts[d]
				}
				tw.AppendFooter(table.Row{"total", total})
				tw.Render()
				return nil
			})
		},
	}
}

func poolActivateCmd() *cobra.Command {
	var (
		opts   engine.ActivateOptions
		status string
	)
	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Bring a pooled candidate back into a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Actor = actor()
			opts.TargetStatus = domain.PipelineStatus(status)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.ActivatePooledCandidate(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrText(res, fmt.Sprintf("activated into application %s on job order %s (%s)",
					res.Application.ID, res.Application.JobOrderID, res.Application.PipelineStatus))
			})
		},
	}
	cmd.Flags().StringVar(&opts.TargetJobOrderID, "job-order", "", "target job order")
	_ = cmd.MarkFlagRequired("job-order")
	cmd.Flags().StringVar(&status, "status", "", "starting stage (defaults to hr_interview)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "timeline notes")
	return cmd
}

func poolDispositionCmd() *cobra.Command {
	var disposition, notes string
	cmd := &cobra.Command{
		Use:   "disposition <id>",
		Short: "Set disposition and/or notes of a pooled candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := engine.DispositionUpdate{Disposition: domain.Disposition(disposition), Actor: actor()}
			if cmd.Flags().Changed("notes") {
				upd.Notes = &notes
			}
			if upd.Disposition == "" && upd.Notes == nil {
				return fmt.Errorf("--set or --notes required")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rec, err := rt.Engine.SetPooledDisposition(ctx, args[0], upd)
				if err != nil {
					return err
				}
				return printJSONOrText(rec, fmt.Sprintf("%s is %s", rec.ID, rec.Disposition))
			})
		},
	}
	cmd.Flags().StringVar(&disposition, "set", "", "new disposition")
	cmd.Flags().StringVar(&notes, "notes", "", "replace notes")
	return cmd
}

func poolBulkCmd() *cobra.Command {
	var (
		ids         []string
		disposition string
		notes       string
	)
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Set one disposition on many pooled candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			var notesPtr *string
			if cmd.Flags().Changed("notes") {
				notesPtr = &notes
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.BulkSetPooledDisposition(ctx, ids, domain.Disposition(disposition), notesPtr, actor())
				if err != nil {
					return err
				}
				return printJSONOrText(res, fmt.Sprintf("updated %d, skipped %d activated [%s], missing [%s]",
					res.Updated, len(res.Skipped), strings.Join(res.Skipped, ","), strings.Join(res.Missing, ",")))
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "pooled candidate ids (comma separated)")
	cmd.Flags().StringVar(&disposition, "disposition", "", "disposition to apply")
	cmd.Flags().StringVar(&notes, "notes", "", "replace notes")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("disposition")
	return cmd
}

func poolExportCmd() *cobra.Command {
	var (
		f           repo.PoolFilter
		disposition string
		out         string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the talent pool to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Disposition = domain.Disposition(disposition)
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				path, n, err := rt.Engine.ExportPool(ctx, f, out)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]any{"path": path, "records": n}, fmt.Sprintf("wrote %d records to %s", n, path))
			})
		},
	}
	addPoolFilterFlags(cmd, &f, &disposition)
	cmd.Flags().StringVarP(&out, "out", "o", "talent_pool.xlsx", "output file")
	return cmd
}

// poolRunCmd reruns the bulk-pool pass, e.g. after a cascade was
// interrupted. Records that already exist are kept.
func poolRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-order-id>",
		Short: "Pool every active application of a job order now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.BulkPoolJobOrder(ctx, args[0])
				if err != nil {
					return err
				}
				text := fmt.Sprintf("pooled %d, skipped %d, failed %d", len(res.Pooled), len(res.Skipped), len(res.Failed))
				if res.Guarded {
					text = "another pooling pass for this job order is running"
				}
				return printJSONOrText(res, text)
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Activity log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var f repo.ActivityFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListActivity(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("TS", "Type", "Entity", "By", "Details")
				for _, a := range items {
					tw.AppendRow(table.Row{a.TS, a.ActivityType, a.EntityType + ":" + a.EntityID, a.PerformedByName, a.Details})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of entries")
	cmd.Flags().StringVar(&f.Type, "type", "", "activity type filter")
	cmd.Flags().StringVar(&f.EntityType, "entity-type", "", "entity type filter")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	return cmd
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
