package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/app"
	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/migrate"
	"hireline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hireline CLI",
	Long: `Hireline moves candidates through hiring pipelines and keeps a talent pool of
the ones worth revisiting.
- Job orders: open positions; moving one to pooling pools every candidate still in its funnel.
- Applications: a candidate against a job order; stages go hr_interview -> tech_interview -> offer -> hired (rejected is an exit).
- Timeline: every stage change with the days spent in the previous stage.
- Talent pool: pooled candidates curated by disposition (available, on_hold, not_suitable, archived) and activated back into a pipeline.
- Activity log: audit trail of every change, view with 'hl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HIRELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor", "", "name recorded as the performer of changes (defaults to $USER)")
	flags.String("db-driver", "", "database driver: sqlite or postgres (overrides hireline.yml)")
	flags.String("db-dsn", "", "database DSN (overrides hireline.yml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	for _, name := range []string{"workspace", "json", "actor", "db-driver", "db-dsn", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(jobOrderCmd())
	rootCmd.AddCommand(candidateCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(poolCmd())
	rootCmd.AddCommand(logCmd())
}

func runtimeOptions() app.Options {
	return app.Options{
		Workspace: viper.GetString("workspace"),
		Overrides: app.Overrides{
			DBDriver:   viper.GetString("db-driver"),
			DBDSN:      viper.GetString("db-dsn"),
			WebhookURL: viper.GetString("webhook-url"),
			RedisURL:   viper.GetString("redis-url"),
			JWTSecret:  viper.GetString("jwt-secret"),
			LogLevel:   viper.GetString("log-level"),
		},
	}
}

// withRuntime bootstraps, runs fn and closes the runtime, which also waits
// for any pooling cascade fn started.
func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) (err error) {
	rt, err := app.Bootstrap(ctx, runtimeOptions())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		err = errors.Join(err, rt.Close(closeCtx))
	}()
	return fn(ctx, rt)
}

func actor() string {
	if a := strings.TrimSpace(viper.GetString("actor")); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local-user"
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runtimeOptions()
			opts.SkipMigrate = true
			rt, err := app.Bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(cmd.Context()))
			before, err := migrate.Version(cmd.Context(), rt.DB)
			if err != nil {
				return err
			}
			if err := migrate.Migrate(cmd.Context(), rt.DB, rt.Dialect); err != nil {
				return err
			}
			after, err := migrate.Version(cmd.Context(), rt.DB)
			if err != nil {
				return err
			}
			return printJSONOrText(map[string]any{"dialect": rt.Dialect, "from": before, "to": after},
				fmt.Sprintf("schema version %d -> %d (%s)", before, after, rt.Dialect))
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage hireline.yml"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default hireline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace hireline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	cfg.AddCommand(initCmd, validateCmd)
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					BasePath: basePath,
					Logger:   rt.Logger,
					Auth: server.AuthConfig{
						JWTSecret:        rt.Config.Auth.JWTSecret,
						AllowActorHeader: rt.Config.Auth.AllowActorHeader,
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Logger.Info("serving hireline API", "addr", addr, "base_path", basePath,
					"openapi", basePath+"/openapi.json", "docs", "/docs",
					"bearer_auth", rt.Config.Auth.JWTSecret != "")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject, name string
		ttl           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API (needs HIRELINE_JWT_SECRET or auth.jwt_secret)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				cfg, err := config.LoadOptional(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				if cfg != nil {
					secret = cfg.Auth.JWTSecret
				}
			}
			if secret == "" {
				return fmt.Errorf("no jwt secret configured")
			}
			if subject == "" {
				subject = actor()
			}
			tok, err := server.IssueToken(secret, subject, name, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (defaults to the actor)")
	cmd.Flags().DurationVar(&ttl, "ttl", server.DefaultTokenTTL, "token lifetime")
	cmd.Flags().StringVar(&name, "name", "", "display name recorded on changes")
	return cmd
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
