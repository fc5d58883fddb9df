// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/nr-bulk-delete/internal/deleter"
	"github.com/xkilldash9x/nr-bulk-delete/internal/observability"
)

// ErrUsage marks invalid command-line input. Usage errors exit with code 1
// before any network call is made.
var ErrUsage = errors.New("usage error")

// options holds every flag value for one invocation.
type options struct {
	cfgFile string
	envFile string

	apiKey    string
	accountID int
	query     string
	dryRun    bool

	region   string
	endpoint string
	timeout  string
	rate     float64
	logLevel string
}

// NewRootCommand builds a fresh command tree. A new instance per execution
// keeps flag state from leaking between runs and tests.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "nr-bulk-delete",
		Short: "Bulk-delete New Relic entities matching an entity search query.",
		Long: `nr-bulk-delete searches New Relic (NerdGraph) for entities matching a query
within one account and requests the deletion of every match, one at a time.

Exit codes: 0 when every deletion succeeded (or nothing matched, or --dry-run),
1 on usage, configuration or search errors and on interruption,
2 when at least one deletion failed.`,
		Example: `  nr-bulk-delete -k NRAK-XXXX -a 1234567 -q "name LIKE 'staging-app%' AND domain = 'APM'"
  nr-bulk-delete -k NRAK-XXXX -a 1234567 -q "type = 'HOST' AND reporting = 'false'" --dry-run`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Cobra checks required flags after PreRun hooks, so value checks live here.
			if err := opts.runConfig().Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			// Input is valid from here on; later errors are not usage problems.
			cmd.SilenceUsage = true
			return runDelete(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.apiKey, "api-key", "k", "", "New Relic User API key (NRAK-...) allowed to delete entities")
	flags.IntVarP(&opts.accountID, "account-id", "a", 0, "New Relic account ID (integer)")
	flags.StringVarP(&opts.query, "query", "q", "", "NerdGraph entity search query, e.g. \"name LIKE 'staging-app%' AND domain = 'APM'\" (quote it)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "search and list matching entities without deleting anything")
	flags.StringVar(&opts.region, "region", "", "NerdGraph region: us or eu (default from config, us)")
	flags.StringVar(&opts.endpoint, "endpoint", "", "override the NerdGraph GraphQL URL")
	flags.StringVar(&opts.timeout, "timeout", "", "per-request timeout, e.g. 30s (default from config)")
	flags.Float64Var(&opts.rate, "rate", 0, "maximum delete requests per second; 0 means unlimited")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"api-key", "account-id", "query"} {
		_ = rootCmd.MarkFlagRequired(name)
	}

	pflags := rootCmd.PersistentFlags()
	pflags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./nr-bulk-delete.yaml if present)")
	pflags.StringVar(&opts.envFile, "env-file", "", "dotenv file with NRDELETE_* settings to load before the config")

	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
	return rootCmd
}

// Execute runs the command tree against os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	defer observability.Sync()

	err := rootCmd.ExecuteContext(ctx)
	// The transcript already carries the summary for partial failures.
	if err != nil && !errors.Is(err, deleter.ErrPartialFailure) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return deleter.ExitCode(err)
}
