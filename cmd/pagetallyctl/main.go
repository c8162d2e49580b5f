// main.go - Admin control tool for pagetally
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/term"

	"pagetally/internal"
	"pagetally/internal/annotations"
	"pagetally/internal/pkg/referrers"
	"pagetally/internal/seeder"
	"pagetally/internal/settings"
	"pagetally/internal/stats"
	"pagetally/internal/websites"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	topEntries             = 10
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&AddOriginCommand{},
	&RemoveOriginCommand{},
	&ShareCommand{},
	&UnshareCommand{},
	&AnnotateCommand{},
	&SetCommand{},
	&AvailableCommand{},
	&StatsCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}
	if _, ok := cmd.(*HelpCommand); ok {
		cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: Cleanup error: %v", err)
		}
	}()

	// Migrations are idempotent and load the settings cache the stats
	// commands depend on.
	if err := app.DBManager.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command %s failed: %v", cmd.Name(), err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Migrations completed successfully")
	return nil
}

// AddOriginCommand registers an origin so its beacons are accepted.
type AddOriginCommand struct{}

func (c *AddOriginCommand) Name() string        { return "add-origin" }
func (c *AddOriginCommand) Description() string { return "Registers an origin: add-origin <domain>" }

func (c *AddOriginCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <domain>", c.Name())
	}
	website, err := websites.CreateWebsite(app.DBManager.GetConnection(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (id %d)\n", website.Domain, website.ID)
	return nil
}

// RemoveOriginCommand stops accepting beacons for an origin. Its data
// directory is left untouched.
type RemoveOriginCommand struct{}

func (c *RemoveOriginCommand) Name() string        { return "remove-origin" }
func (c *RemoveOriginCommand) Description() string { return "Unregisters an origin: remove-origin <domain>" }

func (c *RemoveOriginCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <domain>", c.Name())
	}
	if err := websites.DeleteWebsite(app.DBManager.GetConnection(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s; files under %s were kept\n", args[0], app.Store.OriginDir(websites.NormalizeDomain(args[0])))
	return nil
}

// ShareCommand issues a read-only token for one origin.
type ShareCommand struct{}

func (c *ShareCommand) Name() string        { return "share" }
func (c *ShareCommand) Description() string { return "Prints a read-only API token for an origin: share <domain>" }

func (c *ShareCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <domain>", c.Name())
	}
	db := app.DBManager.GetConnection()
	website, err := websites.GetWebsiteByDomain(db, args[0])
	if err != nil {
		return err
	}
	if website.ShareToken != nil && *website.ShareToken != "" {
		fmt.Println(*website.ShareToken)
		return nil
	}
	token, err := websites.EnableSharing(db, website.ID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// UnshareCommand revokes an origin's token.
type UnshareCommand struct{}

func (c *UnshareCommand) Name() string        { return "unshare" }
func (c *UnshareCommand) Description() string { return "Revokes an origin's API token: unshare <domain>" }

func (c *UnshareCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <domain>", c.Name())
	}
	db := app.DBManager.GetConnection()
	website, err := websites.GetWebsiteByDomain(db, args[0])
	if err != nil {
		return err
	}
	return websites.DisableSharing(db, website.ID)
}

// AnnotateCommand records a deployment, campaign or incident.
type AnnotateCommand struct{}

func (c *AnnotateCommand) Name() string { return "annotate" }
func (c *AnnotateCommand) Description() string {
	return "Adds an annotation: annotate [-end DAY] [-type TYPE] [-description TEXT] <domain> <day> <title>"
}

func (c *AnnotateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	end := fs.String("end", "", "last day, defaults to the start day")
	kind := fs.String("type", string(annotations.AnnotationGeneral), "deployment, campaign, incident or general")
	description := fs.String("description", "", "longer description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: %s", c.Description())
	}

	annotation := &annotations.Annotation{
		Origin:      websites.NormalizeDomain(fs.Arg(0)),
		StartDay:    fs.Arg(1),
		EndDay:      *end,
		Title:       fs.Arg(2),
		Description: *description,
		Type:        annotations.AnnotationType(*kind),
	}
	db := app.DBManager.GetConnection()
	if _, err := websites.GetWebsiteByDomain(db, annotation.Origin); err != nil {
		return err
	}
	if err := annotations.CreateAnnotation(db, annotation); err != nil {
		return err
	}
	fmt.Printf("Annotation %d added to %s\n", annotation.ID, annotation.Origin)
	return nil
}

// SetCommand replaces one of the exclusion lists.
type SetCommand struct{}

func (c *SetCommand) Name() string { return "set" }
func (c *SetCommand) Description() string {
	return fmt.Sprintf("Replaces an exclusion list: set <%s|%s|%s> <comma-separated values>",
		settings.KeyExcludedIPs, settings.KeySpamIPs, settings.KeySpamCountries)
}

func (c *SetCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.Description())
	}
	key := args[0]
	if !slices.Contains([]string{settings.KeyExcludedIPs, settings.KeySpamIPs, settings.KeySpamCountries}, key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	return settings.UpdateSetting(app.DBManager.GetConnection(), key, args[1])
}

// AvailableCommand prints the range of days holding data for an origin.
type AvailableCommand struct{}

func (c *AvailableCommand) Name() string        { return "available" }
func (c *AvailableCommand) Description() string { return "Shows the days holding data: available <domain>" }

func (c *AvailableCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <domain>", c.Name())
	}
	interval, err := app.Store.Available(websites.NormalizeDomain(args[0]))
	if err != nil {
		return err
	}
	fmt.Println(interval)
	return nil
}

// StatsCommand computes stats from the command line. Output is JSON when
// stdout is not a terminal.
type StatsCommand struct{}

func (c *StatsCommand) Name() string { return "stats" }
func (c *StatsCommand) Description() string {
	return "Computes stats: stats <domain> <range> [filter]"
}

func (c *StatsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: %s", c.Description())
	}
	interval, err := app.Handler.Ranges.Parse(args[1])
	if err != nil {
		return err
	}
	var filter stats.Filter
	if len(args) == 3 {
		if filter, err = stats.ParseFilter(args[2]); err != nil {
			return err
		}
	}

	result, err := app.Handler.Aggregator.Compute(ctx, websites.NormalizeDomain(args[0]), interval, filter)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return printStats(os.Stdout, result)
}

func printStats(out io.Writer, result *stats.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Origin\t%s\n", result.Origin)
	fmt.Fprintf(w, "Range\t%s\n", result.Range)
	if result.Filter != "" {
		fmt.Fprintf(w, "Filter\t%s\n", result.Filter)
	}
	fmt.Fprintf(w, "Sessions\t%d\n", result.SessionTotal)
	fmt.Fprintf(w, "Page views\t%d\n", result.ViewTotal)
	fmt.Fprintf(w, "Views per session\t%.2f\n", result.AvgSessionLength)
	fmt.Fprintf(w, "Excluded\tdev %d, bot %d, spam %d\n", result.Excluded.Dev, result.Excluded.Bot, result.Excluded.Spam)
	if err := w.Flush(); err != nil {
		return err
	}

	for _, dimension := range stats.Dimensions {
		table := result.Tables[dimension]
		if table == nil || table.Len() == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", dimension)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		entries := table.Entries()
		for _, e := range entries[:min(len(entries), topEntries)] {
			fmt.Fprintf(w, "%d\t  %s\t\n", e.Value, entryLabel(dimension, e.Key))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// entryLabel names well-known referral origins, keeping the hostname.
func entryLabel(dimension, key string) string {
	if dimension != stats.ReferralOrigins || key == stats.Unknown {
		return key
	}
	if name := referrers.FriendlyName(key); !strings.EqualFold(name, key) {
		return name + " (" + key + ")"
	}
	return key
}

// SeedCommand fills past days of an origin with synthetic sessions
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Seeds synthetic sessions: seed [-sessions N] [-seed N] <domain> <range>"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	perDay := fs.Int("sessions", 200, "sessions per day")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: %s", c.Description())
	}

	origin := websites.NormalizeDomain(fs.Arg(0))
	if _, err := websites.GetWebsiteByDomain(app.DBManager.GetConnection(), origin); err != nil {
		return err
	}
	interval, err := app.Handler.Ranges.Parse(fs.Arg(1))
	if err != nil {
		return err
	}

	se := seeder.NewSeeder(app.Store, app.Logger, *perDay)
	se.Seed = *seed
	stored, err := se.SeedOrigin(ctx, origin, interval)
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d page views for %s over %s\n", stored, origin, interval)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()
	origins, err := websites.ListOrigins(db)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Data directory: %s", app.Store.Root())
	log.Printf("- Origins: %d", len(origins))
	for _, origin := range origins {
		available, err := app.Store.Available(origin)
		if err != nil {
			log.Printf("  - %s: no data", origin)
			continue
		}
		log.Printf("  - %s: %s", origin, available)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: pagetallyctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
