package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tanq16/fget/internal/config"
	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/scheduler"
	"github.com/tanq16/fget/internal/utils"
)

var FgetVersion = "dev"

var (
	cfgFile     string
	cfg         config.Config
	flagCfg     config.Config
	outputPath  string
	rateLimit   string
	credentials string
	headers     []string
)

var rootCmd = &cobra.Command{
	Use:     "fget [URL]",
	Short:   "fget downloads files over HTTP with parallel byte-range connections",
	Version: FgetVersion,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			return
		}
		url := args[0]
		if _, err := u.Parse(url); err != nil {
			output.PrintError("Invalid URL format")
			os.Exit(1)
		}
		runJobs(cmd.Context(), []utils.FgetJob{buildJob(url, outputPath)}, 1)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file name (inferred from the URL if not provided)")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.IntVarP(&flagCfg.Connections, "connections", "c", 8, "Maximum concurrent connections per download (above 5 enables high-thread-mode)")
	flags.IntVar(&flagCfg.Chunks, "chunks", 0, "Number of chunks per download (defaults to --connections)")
	flags.StringVar(&flagCfg.Dir, "dir", ".", "Directory to save downloads in")
	flags.IntVar(&flagCfg.Retries, "retries", 0, "Retries per chunk before the download fails")
	flags.StringVar(&rateLimit, "limit", "", "Bandwidth cap per download (eg. 500KB, 10MB)")
	flags.IntVarP(&flagCfg.Workers, "workers", "w", 1, "Number of downloads to run in parallel")
	flags.IntVar(&flagCfg.MaxSockets, "max-sockets", utils.DefaultMaxSocketsPerHost, "Maximum sockets per host")
	flags.DurationVarP(&flagCfg.Timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	flags.DurationVarP(&flagCfg.KATimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringVarP(&flagCfg.UserAgent, "user-agent", "a", "", "User agent (defaults to fget/<version> with platform details)")
	flags.StringVarP(&flagCfg.Proxy, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.StringVar(&flagCfg.ProxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.StringVar(&flagCfg.ProxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'X-Trace: abc'); can be specified multiple times")
	flags.StringVarP(&credentials, "auth", "u", "", "Basic auth credentials as user:password")
	flags.StringVar(&flagCfg.Token, "token", "", "Bearer token for the Authorization header")
	flags.BoolVar(&flagCfg.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&flagCfg.LogFile, "log-file", false, "Write logs to "+utils.LogFile+" instead of the terminal")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newS3Cmd())
	rootCmd.AddCommand(newCleanCmd())
}

// loadConfig layers defaults, the config file, FGET_* variables and finally the
// flags the user actually set.
func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &loaded); err != nil {
		return err
	}
	loaded.Proxy, loaded.ProxyUsername, loaded.ProxyPassword = splitProxyAuth(loaded.Proxy, loaded.ProxyUsername, loaded.ProxyPassword)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	utils.InitLogger(cfg.Debug)
	if !cfg.Debug && !cfg.LogFile {
		utils.SilenceLogs()
	}
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	override := config.Config{}
	if flags.Changed("connections") {
		c.Connections = flagCfg.Connections
	}
	if flags.Changed("chunks") {
		c.Chunks = flagCfg.Chunks
	}
	if flags.Changed("dir") {
		c.Dir = flagCfg.Dir
	}
	if flags.Changed("retries") {
		c.Retries = flagCfg.Retries
	}
	if flags.Changed("workers") {
		c.Workers = flagCfg.Workers
	}
	if flags.Changed("max-sockets") {
		c.MaxSockets = flagCfg.MaxSockets
	}
	if flags.Changed("timeout") {
		c.Timeout = flagCfg.Timeout
	}
	if flags.Changed("keep-alive-timeout") {
		c.KATimeout = flagCfg.KATimeout
	}
	if flags.Changed("debug") {
		c.Debug = flagCfg.Debug
	}
	if flags.Changed("log-file") {
		c.LogFile = flagCfg.LogFile
	}
	if flags.Changed("limit") {
		if err := c.RateLimit.Decode(rateLimit); err != nil {
			return fmt.Errorf("invalid --limit: %w", err)
		}
	}
	override.UserAgent = flagCfg.UserAgent
	override.Proxy = flagCfg.Proxy
	override.ProxyUsername = flagCfg.ProxyUsername
	override.ProxyPassword = flagCfg.ProxyPassword
	override.Token = flagCfg.Token
	override.Headers = utils.ParseHeaderArgs(headers)
	*c = c.Merge(override)
	return nil
}

// splitProxyAuth moves credentials embedded in the proxy URL into the separate fields
// unless those were given explicitly.
func splitProxyAuth(proxyURL, username, password string) (string, string, string) {
	parsedProxy, err := u.Parse(proxyURL)
	if err != nil || parsedProxy.User == nil || username != "" {
		return proxyURL, username, password
	}
	username = parsedProxy.User.Username()
	if p, set := parsedProxy.User.Password(); set {
		password = p
	}
	parsedProxy.User = nil
	return parsedProxy.String(), username, password
}

func httpClientConfig() (utils.HTTPClientConfig, error) {
	clientCfg := cfg.HTTPClientConfig()
	if credentials != "" {
		user, pass, err := utils.ParseCredentials(credentials)
		if err != nil {
			return clientCfg, err
		}
		clientCfg.Username, clientCfg.Password = user, pass
	}
	return clientCfg, nil
}

func buildJob(url, outputPath string) utils.FgetJob {
	clientCfg, err := httpClientConfig()
	if err != nil {
		output.PrintError(fmt.Sprintf("Invalid credentials: %v", err))
		os.Exit(1)
	}
	return utils.FgetJob{
		ID:               uuid.NewString(),
		URL:              url,
		OutputPath:       outputPath,
		Dir:              cfg.Dir,
		Connections:      cfg.Connections,
		ChunkCount:       cfg.Chunks,
		Retries:          cfg.Retries,
		RateLimit:        int64(cfg.RateLimit),
		VersionTag:       FgetVersion,
		HTTPClientConfig: clientCfg,
	}
}

// connectionsPerLink keeps the total across parallel downloads under 64.
func connectionsPerLink(connections, workers int) int {
	const maxConnections = 64
	if workers*connections > maxConnections {
		return max(maxConnections/workers, 1)
	}
	return connections
}

func runJobs(ctx context.Context, jobs []utils.FgetJob, workers int) {
	perLink := connectionsPerLink(cfg.Connections, workers)
	for i := range jobs {
		jobs[i].Connections = perLink
	}
	if err := scheduler.Run(ctx, jobs, workers, cfg.LogFile); err != nil {
		output.PrintError("Encountered failed operation(s)")
		os.Exit(1)
	}
}
