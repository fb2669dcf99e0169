package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/privacywhen/coursecluster/internal/cluster"
	"github.com/privacywhen/coursecluster/internal/config"
	"github.com/privacywhen/coursecluster/internal/coursekey"
	"github.com/privacywhen/coursecluster/internal/listings"
	"github.com/privacywhen/coursecluster/internal/mcp"
	"github.com/privacywhen/coursecluster/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "cluster":
		err = runCluster(os.Args[2:])
	case "mapping":
		err = runMapping(os.Args[2:])
	case "enroll":
		err = runEnroll(os.Args[2:])
	case "course":
		err = runCourse(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("coursecluster %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags attaches the config-resolution flags shared by every command.
func commonFlags(fs *flag.FlagSet) *config.ResolveOptions {
	opts := &config.ResolveOptions{}
	fs.StringVar(&opts.ConfigPath, "config", "", "path to config file")
	fs.StringVar(&opts.CLIDBPath, "db", "", "path to the SQLite database")
	fs.StringVar(&opts.CLIListingsURL, "listings-url", "", "base URL of the course listings catalogue")
	fs.StringVar(&opts.CLIInterval, "interval", "", "clustering interval for serve (e.g. 1h, 30m)")
	return opts
}

func openStore(cfg config.ResolvedConfig) (*store.SQLiteStore, error) {
	return store.Open(store.Config{DBPath: cfg.DBPath.Value})
}

func newEngine(cfg config.ResolvedConfig, log zerolog.Logger) (*cluster.Engine, error) {
	cl := cfg.Clustering
	return cluster.NewEngine(cluster.Options{
		GroupingThreshold:   cl.GroupingThreshold,
		MaxCategoryChannels: cl.MaxCategoryChannels,
		CategoryPrefix:      cl.CategoryPrefix,
		OptimizeOverlap:     cl.OptimizeOverlapEnabled(),
		AdaptiveThreshold:   cl.AdaptiveThreshold,
		ThresholdFactor:     cl.ThresholdFactor,
		SparseOverlap:       cl.SparseOverlap,
		Logger:              log,
	})
}

func consoleLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().Timestamp().Logger()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	opts := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	log := consoleLogger()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	engine, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("db", st.Path()).Msg("store opened")

	return engine.RunPeriodic(ctx, cfg.Interval, st, st.SaveMapping, st)
}

func runCluster(args []string) error {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	opts := commonFlags(fs)
	dryRun := fs.Bool("dry-run", false, "compute the mapping without persisting it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	engine, err := newEngine(cfg, consoleLogger())
	if err != nil {
		return err
	}

	ctx := context.Background()
	raw, err := st.FetchMembership(ctx)
	if err != nil {
		return fmt.Errorf("fetching enrollments: %w", err)
	}
	metadata, err := st.FetchMetadata(ctx)
	if err != nil {
		return fmt.Errorf("fetching metadata: %w", err)
	}

	mapping, err := engine.Cluster(raw, metadata)
	if err != nil {
		return fmt.Errorf("clustering: %w", err)
	}

	if !*dryRun {
		if err := st.SaveMapping(ctx, mapping); err != nil {
			return fmt.Errorf("saving mapping: %w", err)
		}
	}

	byLabel := make(map[string][]cluster.CourseID)
	for courseID, label := range mapping {
		byLabel[label] = append(byLabel[label], courseID)
	}
	data, err := json.MarshalIndent(byLabel, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if *dryRun {
		fmt.Fprintln(os.Stderr, "Dry run: mapping not persisted")
	}
	return nil
}

func runMapping(args []string) error {
	fs := flag.NewFlagSet("mapping", flag.ContinueOnError)
	opts := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	entries, err := st.GetMapping(context.Background())
	if err != nil {
		return fmt.Errorf("fetching mapping: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No mapping persisted yet. Run 'coursecluster cluster' first.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%-20s %s\n", e.CourseID, e.CategoryLabel)
	}
	return nil
}

func runEnroll(args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	opts := commonFlags(fs)
	remove := fs.Bool("remove", false, "remove the enrollment instead of recording it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: coursecluster enroll [--remove] <course_id> <user_id>")
	}
	courseID, userID := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if *remove {
		if err := st.RemoveEnrollment(ctx, courseID, userID); err != nil {
			return err
		}
		fmt.Printf("Removed enrollment of user %s from course %s\n", userID, courseID)
		return nil
	}

	if err := st.RecordEnrollment(ctx, courseID, userID); err != nil {
		return err
	}
	fmt.Printf("Recorded enrollment of user %s in course %s\n", userID, courseID)
	return nil
}

func runCourse(args []string) error {
	fs := flag.NewFlagSet("course", flag.ContinueOnError)
	opts := commonFlags(fs)
	code := fs.String("code", "", "course code (e.g. socwork-2a06); department is derived, and the listings catalogue is consulted when configured")
	department := fs.String("department", "", "department code")
	title := fs.String("title", "", "course title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: coursecluster course <course_id> [--code <code>] [--department <dept>] [--title <title>]")
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	course := store.Course{
		CourseID:   fs.Arg(0),
		Department: *department,
		Title:      *title,
	}

	if *code != "" {
		parsed, err := coursekey.Parse(*code)
		if err != nil {
			return fmt.Errorf("parsing course code: %w", err)
		}
		if course.Department == "" {
			course.Department = parsed.Department
		}
		if cfg.ListingsURL.Value != "" {
			client := listings.NewClient(cfg.ListingsURL.Value, listings.DefaultTTL, consoleLogger())
			listing, err := client.Lookup(context.Background(), parsed)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: listings lookup failed: %v\n", err)
			} else {
				course.Department = listing.Department
				if course.Title == "" {
					course.Title = listing.Title
				}
			}
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.UpsertCourse(context.Background(), course); err != nil {
		return err
	}
	fmt.Printf("Course %s registered (department=%q title=%q)\n", course.CourseID, course.Department, course.Title)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	opts := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Courses:        %d\n", stats.Courses)
	fmt.Printf("Enrollments:    %d\n", stats.Enrollments)
	fmt.Printf("Distinct users: %d\n", stats.DistinctUsers)
	fmt.Printf("Mapped courses: %d\n", stats.MappedCourses)
	fmt.Printf("DB size:        %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	opts := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	opts := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(*opts)
	if err != nil {
		return err
	}

	log := consoleLogger()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	engine, err := newEngine(cfg, log)
	if err != nil {
		return err
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   st,
		Engine:  engine,
		Version: version,
		Logger:  log,
	})
	return server.ServeStdio(srv)
}

func printUsage() {
	fmt.Printf(`coursecluster %s — course channel clustering service

Usage:
  coursecluster <command> [arguments]

Commands:
  serve                       Run periodic clustering until interrupted
  cluster [--dry-run]         Run one clustering cycle and persist the mapping
  mapping                     Show the last persisted course-to-category mapping
  enroll <course> <user>      Record an enrollment (--remove to undo)
  course <course_id>          Register or update a course (--code, --department, --title)
  stats                       Show store statistics
  config                      Show the resolved configuration and its sources
  mcp                         Run the MCP server over stdio
  version                     Print version

Common Flags:
  --config <path>             Config file (default ~/.coursecluster/config.yaml)
  --db <path>                 SQLite database path
  --listings-url <url>        Course listings catalogue base URL
  --interval <dur>            Clustering interval for serve (default 1h)
`, version)
}
