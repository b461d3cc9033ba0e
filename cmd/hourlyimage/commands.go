package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/weiland/HourlyImage/pkg/config"
	"github.com/weiland/HourlyImage/pkg/credentials"
	"github.com/weiland/HourlyImage/pkg/hourly"
	"github.com/weiland/HourlyImage/pkg/twitter"
	"github.com/weiland/HourlyImage/pkg/twitter/oauth"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
	"github.com/weiland/HourlyImage/pkg/utils/logger"
	"github.com/weiland/HourlyImage/pkg/utils/metrics"
)

const defaultConfigFile = "hourlyimage.yaml"

type options struct {
	configPath      string
	credentialsPath string
	logLevel        string
	logJSON         bool
	showMetrics     bool
	metricsFormat   string

	fs        afero.Fs
	lookuper  envconfig.Lookuper
	transport twitter.Transport
	metrics   *metrics.MetricsCollector
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{
		fs:       afero.NewOsFs(),
		lookuper: envconfig.OsLookuper(),
	})
}

func newRootCmdWith(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hourlyimage",
		Short:         "Post webcam snapshots with OAuth 1.0a signed requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger.SetDefault(logger.Config{
				Level:      level,
				Output:     cmd.ErrOrStderr(),
				JSONFormat: opts.logJSON,
			})
			if opts.metricsFormat != "text" && opts.metricsFormat != "json" {
				return errors.Validation(fmt.Sprintf("unknown metrics format %q, want text or json", opts.metricsFormat))
			}
			opts.metrics = metrics.NewMetricsCollector()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.showMetrics {
				if err := printMetrics(cmd.OutOrStdout(), opts.metrics, opts.metricsFormat); err != nil {
					slog.Error("print metrics", "error", err)
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.credentialsPath, "credentials", "", "Path to the credentials JSON file (default: <image dir>/"+credentials.DefaultFilename+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "Print collected metrics when done")
	rootCmd.PersistentFlags().StringVar(&opts.metricsFormat, "metrics-format", "text", "Metrics output format: text or json")

	rootCmd.AddCommand(
		newPostCmd(opts),
		newUploadCmd(opts),
		newDestroyCmd(opts),
		newSignCmd(opts),
		newInitConfigCmd(opts),
	)
	return rootCmd
}

func newPostCmd(opts *options) *cobra.Command {
	var note string
	var lat, long float64
	var noLocation, deleteAfter bool

	cmd := &cobra.Command{
		Use:   "post [image...]",
		Short: "Upload images and post them as a dated status",
		Long:  "Upload up to four images and post them as a status. Without arguments the newest image in the image directory is posted.",
		Args:  cobra.MaximumNArgs(hourly.MaxImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(opts)
			if err != nil {
				return report(err)
			}
			if !cfg.Twitter.Enabled {
				fmt.Fprintf(out, "%s Posting is disabled in the configuration\n", warn("⚠️"))
				return nil
			}

			paths := args
			if len(paths) == 0 {
				latest, err := hourly.LatestImage(opts.fs, cfg.ImageDirectory(), cfg.Images.Extension)
				if err != nil {
					return report(err)
				}
				paths = []string{latest}
			}

			coordinates := cfg.Coordinates()
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("long") {
				coordinates = &twitter.Coordinates{Latitude: lat, Longitude: long}
			}
			if noLocation {
				coordinates = nil
			}

			client, err := newClient(cmd.Context(), opts, cfg)
			if err != nil {
				return report(err)
			}
			poster, err := hourly.NewPoster(&hourly.PosterConfig{
				API:               client,
				Fs:                opts.fs,
				DateLayout:        cfg.Twitter.DateLayout,
				Note:              note,
				Coordinates:       coordinates,
				MediaCategory:     cfg.Twitter.MediaCategory,
				AdditionalOwners:  cfg.Twitter.AdditionalOwners,
				UploadConcurrency: cfg.Client.UploadConcurrency,
				DeleteAfterPost:   deleteAfter,
				Metrics:           opts.metrics,
			})
			if err != nil {
				return report(err)
			}

			fmt.Fprintf(out, "\n%s Posting %d image(s)...\n", info("🚀"), len(paths))
			s := newSpinner(cmd, " Uploading and posting...")
			s.Start()
			result, err := poster.Post(cmd.Context(), paths)
			s.Stop()
			if err != nil {
				fmt.Fprintf(out, "%s Failed to post\n", fail("❌"))
				return report(err)
			}

			fmt.Fprintf(out, "%s Posted status %s: %s\n", success("✓"), result.StatusID, result.Status)
			fmt.Fprintf(out, "%s Media: %s\n", info("📄"), strings.Join(result.MediaIDs, ","))
			if result.Deleted {
				fmt.Fprintf(out, "%s Status %s deleted again\n", warn("⚠️"), result.StatusID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Text appended to the status in parentheses")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude to attach, overrides the configured location")
	cmd.Flags().Float64Var(&long, "long", 0, "Longitude to attach, overrides the configured location")
	cmd.Flags().BoolVar(&noLocation, "no-location", false, "Do not attach coordinates")
	cmd.Flags().BoolVar(&deleteAfter, "delete", false, "Delete the status right after posting it")
	return cmd
}

func newUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload image...",
		Short: "Upload images and print their media ids",
		Args:  cobra.RangeArgs(1, hourly.MaxImages),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(opts)
			if err != nil {
				return report(err)
			}
			client, err := newClient(cmd.Context(), opts, cfg)
			if err != nil {
				return report(err)
			}
			poster, err := hourly.NewPoster(&hourly.PosterConfig{
				API:               client,
				Fs:                opts.fs,
				DateLayout:        cfg.Twitter.DateLayout,
				MediaCategory:     cfg.Twitter.MediaCategory,
				AdditionalOwners:  cfg.Twitter.AdditionalOwners,
				UploadConcurrency: cfg.Client.UploadConcurrency,
				Metrics:           opts.metrics,
			})
			if err != nil {
				return report(err)
			}

			s := newSpinner(cmd, " Uploading...")
			s.Start()
			ids, err := poster.UploadImages(cmd.Context(), args)
			s.Stop()
			if err != nil {
				fmt.Fprintf(out, "%s Failed to upload\n", fail("❌"))
				return report(err)
			}
			for i, id := range ids {
				fmt.Fprintf(out, "%s %s %s\n", success("✓"), args[i], id)
			}
			return nil
		},
	}
}

func newDestroyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy status-id",
		Short: "Delete a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return report(err)
			}
			client, err := newClient(cmd.Context(), opts, cfg)
			if err != nil {
				return report(err)
			}
			if _, err := client.DestroyStatus(cmd.Context(), args[0]); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Failed to delete status %s\n", fail("❌"), args[0])
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted status %s\n", success("✓"), args[0])
			return nil
		},
	}
}

func newSignCmd(opts *options) *cobra.Command {
	var method, rawURL string
	var params []string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the base string and Authorization header for a request without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(opts)
			if err != nil {
				return report(err)
			}
			creds, err := loadCredentials(cmd.Context(), opts, cfg)
			if err != nil {
				return report(err)
			}

			values := make(map[string]string, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok || k == "" {
					return report(errors.Validation(fmt.Sprintf("parameter %q is not key=value", p)))
				}
				values[k] = v
			}

			builder, err := oauth.NewBuilder(creds)
			if err != nil {
				return report(errors.Configuration("create request builder", err))
			}
			req, err := builder.NewRequest(method, rawURL, values)
			if err != nil {
				return report(err)
			}
			base, err := req.BaseString()
			if err != nil {
				return report(err)
			}
			outbound, err := req.Build()
			if err != nil {
				return report(err)
			}

			fmt.Fprintf(out, "%s %s %s\n", info("📄"), outbound.Method, outbound.URL)
			fmt.Fprintf(out, "Base string: %s\n", base)
			fmt.Fprintf(out, "Authorization: %s\n", outbound.Header.Get("Authorization"))
			if len(outbound.Body) > 0 {
				fmt.Fprintf(out, "Body: %s\n", outbound.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "POST", "HTTP method")
	cmd.Flags().StringVar(&rawURL, "url", "", "Request URL")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Request parameter as key=value, repeatable")
	cmd.MarkFlagRequired("url")
	return cmd
}

func newInitConfigCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration to the --config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = defaultConfigFile
			}
			if !force {
				exists, err := afero.Exists(opts.fs, path)
				if err != nil {
					return report(errors.Configuration(fmt.Sprintf("stat config %s", path), err))
				}
				if exists {
					return report(errors.Configuration(fmt.Sprintf("config %s already exists, pass --force to overwrite", path), nil))
				}
			}

			cfg := config.Default()
			cfg.ResolveEnv(opts.lookuper)
			if err := cfg.Validate(); err != nil {
				return report(err)
			}
			if err := config.Save(opts.fs, path, cfg); err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", success("✓"), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func loadConfig(opts *options) (config.Config, error) {
	if opts.configPath != "" {
		return config.Load(opts.fs, opts.configPath, opts.lookuper)
	}
	cfg := config.Default()
	cfg.ResolveEnv(opts.lookuper)
	return cfg, cfg.Validate()
}

// loadCredentials prefers the environment and falls back to the credentials file.
func loadCredentials(ctx context.Context, opts *options, cfg config.Config) (oauth.Credentials, error) {
	path := opts.credentialsPath
	if path == "" {
		path = cfg.CredentialsPath()
	}
	source := credentials.ChainSource{
		&credentials.EnvSource{Lookuper: opts.lookuper},
		&credentials.FileSource{Fs: opts.fs, Path: path},
	}

	if opts.metrics == nil {
		return source.Load(ctx)
	}
	var creds oauth.Credentials
	err := opts.metrics.WithLatencyTracking(metrics.MetricCredentialsLoad, func() error {
		var err error
		creds, err = source.Load(ctx)
		return err
	})
	return creds, err
}

func newClient(ctx context.Context, opts *options, cfg config.Config) (*twitter.Client, error) {
	creds, err := loadCredentials(ctx, opts, cfg)
	if err != nil {
		return nil, err
	}
	return twitter.NewClient(&twitter.ClientConfig{
		Credentials: creds,
		Endpoints:   cfg.Endpoints,
		Transport:   opts.transport,
		Timeout:     cfg.Client.Timeout,
		Limiter:     cfg.Limiter(),
		Metrics:     opts.metrics,
	})
}

func newSpinner(cmd *cobra.Command, suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = suffix
	return s
}

func report(err error) error {
	slog.Error("command failed", "error", err, "type", errors.TypeOf(err))
	return err
}

func printMetrics(w io.Writer, collector *metrics.MetricsCollector, format string) error {
	if collector == nil {
		return nil
	}
	if format == "json" {
		return collector.WriteJSON(w)
	}
	snapshot := collector.GetMetrics()
	fmt.Fprintf(w, "\n%s Metrics:\n", info("📊"))
	for _, name := range collector.Names() {
		fmt.Fprintf(w, "  %s (%s): %v\n", name, snapshot[name].Type, snapshot[name].Value)
	}
	return nil
}
