package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/term"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/frontend"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/observability"
)

//go:embed README.md
var readmeMarkdown string

var bannerLines = []string{
	`                          __            __           `,
	`    ___  ___ ____ ___ ___/ /___ _ ___  / /_ ___  ____`,
	`   / _ \/ _ '/ _ '// _  // _ '// _ \/ __// -_)/ __/`,
	`  / .__/\_, /\_,_/ \_,_/ \_,_// .__/\__/ \__//_/   `,
	` /_/   /___/                 /_/                   `,
}

func printBanner() {
	// Gradient from Spanner blue to PostgreSQL slate
	blue, _ := colorful.Hex("#4285F4")
	slate, _ := colorful.Hex("#336791")
	bgColor := lipgloss.Color("#1a1a2e")

	maxWidth := len(bannerLines[0])

	var lines []string
	for _, line := range bannerLines {
		var result strings.Builder
		for i, r := range line {
			t := float64(i) / float64(maxWidth-1)
			c := blue.BlendLuv(slate, t)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(c.Hex())).
				Background(bgColor).
				Bold(true)
			result.WriteString(style.Render(string(r)))
		}
		lines = append(lines, result.String())
	}

	box := lipgloss.NewStyle().
		Background(bgColor).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Println(box)
	fmt.Println()
}

var (
	// Styles for usage output
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4285F4"))

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#336791")).
			Bold(true)

	exampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

func printUsage() {
	fmt.Println(titleStyle.Render("Usage:"))
	fmt.Println("  pgadapter " + flagStyle.Render("-p <project> -i <instance> -d <database>") + " [options]")
	fmt.Println()

	fmt.Println(titleStyle.Render("Options:"))
	flag.VisitAll(func(f *flag.Flag) {
		typeName := fmt.Sprintf("%T", f.Value)
		// Extract type name from *flag.stringValue -> string
		typeName = strings.TrimPrefix(typeName, "*flag.")
		typeName = strings.TrimSuffix(typeName, "Value")

		fmt.Printf("  %s %s\n",
			flagStyle.Render("-"+f.Name),
			descStyle.Render(typeName))
		fmt.Printf("      %s\n", f.Usage)
	})
	fmt.Println()

	fmt.Println(titleStyle.Render("Example:"))
	fmt.Println(exampleStyle.Render("  pgadapter -p my-project -i my-instance -d my-database -s 5432"))
	fmt.Println()

	fmt.Println(descStyle.Render("Run 'pgadapter -help' for full documentation."))
	fmt.Println()
}

func printFullDocs() {
	// Get terminal width, default to 80 if not a terminal
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fallback to raw markdown
		fmt.Println(readmeMarkdown)
		return
	}

	out, err := renderer.Render(readmeMarkdown)
	if err != nil {
		fmt.Println(readmeMarkdown)
		return
	}

	fmt.Print(out)
}

func main() {
	var cfg config.Config

	flag.StringVar(&cfg.Project, "p", "", "Google Cloud project hosting the Spanner instance")
	flag.StringVar(&cfg.Instance, "i", "", "Cloud Spanner instance name")
	flag.StringVar(&cfg.DefaultDatabase, "d", "", "default database for connections that do not name one")
	flag.IntVar(&cfg.TCPPort, "s", 5432, "TCP port to listen on (0 disables the TCP listener)")
	flag.StringVar(&cfg.UnixSocketDir, "dir", "", "directory to create the Unix-domain socket in (empty disables it)")
	flag.BoolVar(&cfg.DisableAuth, "x", false, "accept every connection without a password challenge (local development)")
	sslMode := flag.String("ssl", "disable", "SSL mode for incoming connections: disable, allow, require, or enable")
	flag.StringVar(&cfg.TLS.CertPath, "ssl-cert", "", "path to the server TLS certificate (PEM)")
	flag.StringVar(&cfg.TLS.CertPrivateKeyPath, "ssl-key", "", "path to the server TLS private key (PEM)")
	flag.BoolVar(&cfg.TLS.GenerateCert, "ssl-generate-cert", false, "generate a self-signed certificate when none is configured")
	flag.IntVar(&cfg.CopyBatchRows, "copy-batch-rows", 0, "rows per COPY mutation batch (0 selects the default)")
	flag.Var(&cfg.CopyBatchBytes, "copy-batch-bytes", "bytes per COPY mutation batch, e.g. '1MiB' (0 selects the default)")
	metricsListen := flag.String("metrics", "", "Prometheus listen address as host:port/path, e.g. ':9090/metrics' (empty disables metrics)")
	flag.BoolVar(&cfg.OpenTelemetry.Enabled, "otel", false, "export OpenTelemetry spans for backend calls")
	flag.StringVar(&cfg.OpenTelemetry.OTLPEndpoint, "otlp-endpoint", "", "OTLP collector endpoint (empty uses OTEL_EXPORTER_OTLP_ENDPOINT)")
	flag.Float64Var(&cfg.OpenTelemetry.SamplingRate, "otel-sample", 1.0, "trace sampling rate, 0.0 to 1.0")
	flag.BoolVar(&cfg.JSONLogs, "json", false, "output logs in JSON format")
	verbose := flag.Bool("v", false, "enable debug logging (including wire-protocol traces)")
	showHelp := flag.Bool("help", false, "show full documentation")
	flag.Usage = printUsage
	flag.Parse()

	// Show full docs with -help
	if *showHelp {
		printFullDocs()
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument %q\n\n", flag.Arg(0))
		printUsage()
		os.Exit(2)
	}

	cfg.TLS.SSLMode = config.SSLMode(*sslMode)
	cfg.Metrics = config.ParsePrometheusListen(*metricsListen)

	if err := cfg.Validate(); err != nil {
		printBanner()
		fmt.Fprintf(os.Stderr, "invalid arguments:\n%v\n\n", err)
		printUsage()
		os.Exit(2)
	}

	// Set up logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.JSONLogs {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := context.Background()

	tracerProvider, err := observability.NewTracerProvider(ctx, &cfg.OpenTelemetry)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer tracerProvider.Shutdown(ctx)

	var metrics *observability.Metrics
	if cfg.Metrics != nil {
		metrics = observability.DefaultMetrics()
	}
	metricsServer := observability.NewMetricsServer(cfg.Metrics, logger)
	metricsServer.Start()
	defer metricsServer.Shutdown(ctx)

	srv := frontend.NewServer(&cfg, logger, metrics)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		srv.Shutdown()
	}()

	logger.Info("starting pgadapter",
		"project", cfg.Project,
		"instance", cfg.Instance,
		"database", cfg.DefaultDatabase)

	if err := srv.Listen(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
