// Package cmd provides the command-line interface for pagedbctl.
// It handles command parsing, configuration loading, and dispatch to the
// store, ingestion, and graph-kernel packages.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fetchgraph/pagedb"
	"github.com/fetchgraph/pagedb/graph"
	"github.com/fetchgraph/pagedb/internal/config"
	"github.com/fetchgraph/pagedb/internal/ingest"
	"github.com/fetchgraph/pagedb/internal/logging"
)

var (
	cfgFile   string
	cfg       *config.Config
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pagedbctl",
	Short: "Crawl page store and link graph engine",
	Long: `pagedbctl operates a PageDB: a transactional store of crawled pages
and the link graph between them, plus the HITS and PageRank kernels that
score that graph.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "./pagedb-data", "store directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(rankCmd)
}

// loadConfig reads in config file and ENV variables, then unmarshals into
// the package-level cfg.
func loadConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PAGEDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	cfg = config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.FromAppConfig(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.Console)
	return logging.SetDefault(logCfg)
}

func openStore() (*pagedb.PageDB, error) {
	hasher, err := hasherFor(cfg.Store.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	return pagedb.Open(cfg.Store.Dir, pagedb.Config{
		InitialMmapSize: int(cfg.Store.InitialMmapSize),
		MaxMmapSize:     int(cfg.Store.MaxMmapSize),
		Hasher:          hasher,
	})
}

// hasherFor resolves a store.hash_algorithm config value to a
// pagedb.Hasher. An empty name defaults to xxhash64.
func hasherFor(name string) (pagedb.Hasher, error) {
	switch name {
	case "", "xxhash64":
		return pagedb.DefaultHasher, nil
	default:
		return nil, fmt.Errorf("unknown store.hash_algorithm %q", name)
	}
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest crawled pages from a JSON Lines file (stdin if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	var r *os.File
	if len(args) == 1 {
		r, err = os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer func() { _ = r.Close() }()
	} else {
		r = os.Stdin
	}

	source := ingest.NewJSONLSource(r)
	driver := ingest.NewDriver(db, source)
	driver.Concurrency = cfg.Ingest.Concurrency
	driver.Limit = cfg.Ingest.Limit
	driver.Pacer = ingest.NewPacer(cfg.Ingest.PerHostDelay)
	driver.Logger = slog.Default()

	stats, err := driver.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("ingested %d pages (%d errors) in %s\n", stats.PagesIngested, stats.ErrorCount, stats.Duration)
	return nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <url>",
	Short: "Print the PageInfo record for a URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	info, err := db.GetInfoFromURL(args[0])
	if err != nil {
		return fmt.Errorf("lookup %s: %w", args[0], err)
	}
	if info == nil {
		return fmt.Errorf("lookup %s: %w", args[0], pagedb.Errorf(pagedb.NoPage, "no such page"))
	}

	fmt.Println(info.DebugLine())
	return nil
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Print the store's link stream as from,to pairs",
	Args:  cobra.NoArgs,
	RunE:  runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	stream, err := pagedb.OpenLinkStream(db)
	if err != nil {
		return fmt.Errorf("open link stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	w := cmd.OutOrStdout()
	for {
		edge, state := stream.Next()
		switch state {
		case pagedb.StateNext:
			fmt.Fprintln(w, strconv.FormatUint(edge.From, 10)+","+strconv.FormatUint(edge.To, 10))
		case pagedb.StateEnd:
			return nil
		case pagedb.StateError:
			return fmt.Errorf("link stream: %w", stream.Err())
		}
	}
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run the HITS and PageRank kernels and write score vectors",
	Args:  cobra.NoArgs,
	RunE:  runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	driver := graph.NewDriver(cfg.Store.Dir)
	driver.ReadAhead = cfg.Ingest.ReadAheadEdges
	if err := driver.UpdateHITS(db); err != nil {
		return fmt.Errorf("update hits: %w", err)
	}
	if err := driver.UpdatePageRank(db, 0.85); err != nil {
		return fmt.Errorf("update pagerank: %w", err)
	}

	fmt.Println("wrote hits_hub.vec, hits_auth.vec, pagerank.vec")
	return nil
}
