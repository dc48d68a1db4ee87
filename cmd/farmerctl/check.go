package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"text/tabwriter"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/spf13/cobra"
)

type runOptions struct {
	organization string
	asJSON       bool
	apply        bool
}

var (
	checkOpts  runOptions
	importOpts runOptions
)

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a spreadsheet without writing anything",
	Long: `Check parses FILE and reports every row that would be rejected. It exits
non-zero when any farmer or farm has a problem.

Example:
  farmerctl check farmers.xlsx
  farmerctl check farmers.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openBackend(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore()
		return runCheck(cmd.Context(), cmd.OutOrStdout(), st, args[0], checkOpts)
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import the valid farmers of a spreadsheet",
	Long: `Import parses FILE, reports problems and, with --apply, commits every valid
farmer with its farms. Without --apply it is a dry run. Rows without an
organization take the one given by --organization.

Example:
  farmerctl import farmers.xlsx --organization "Akim Cocoa Cooperative"
  farmerctl import farmers.xlsx --organization "Akim Cocoa Cooperative" --apply`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openBackend(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()
		return runImport(cmd.Context(), cmd.OutOrStdout(), st, args[0], importOpts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkOpts.organization, "organization", "", "default organization (id or name)")
	checkCmd.Flags().BoolVar(&checkOpts.asJSON, "json", false, "print the staged session as JSON")

	importCmd.Flags().StringVar(&importOpts.organization, "organization", "", "default organization (id or name)")
	importCmd.Flags().BoolVar(&importOpts.asJSON, "json", false, "print the outcome as JSON")
	importCmd.Flags().BoolVar(&importOpts.apply, "apply", false, "commit to the database (default is a dry run)")
}

// stage reads path and parses it into a new session.
func stage(ctx context.Context, svc *core.Service, path, org string) (*core.ImportSession, core.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Snapshot{}, err
	}
	defer f.Close()

	data, err := core.ReadUpload(f, svc.MaxFileSize())
	if err != nil {
		return nil, core.Snapshot{}, err
	}

	sess, err := svc.CreateSession(ctx, org)
	if err != nil {
		return nil, core.Snapshot{}, err
	}
	snap, err := svc.Upload(ctx, sess.ID, core.FileInput{Name: filepath.Base(path), Data: data})
	if err != nil {
		return nil, snap, fmt.Errorf("%s: %s", path, core.FormatUserError(err))
	}
	return sess, snap, nil
}

func runCheck(ctx context.Context, out io.Writer, st backend, path string, opts runOptions) error {
	svc := core.NewService(st, core.ServiceConfig{})
	_, snap, err := stage(ctx, svc, path, opts.organization)
	if err != nil {
		return err
	}

	if opts.asJSON {
		err = writeJSON(out, snap)
	} else {
		err = writeReport(out, snap)
	}
	if err != nil {
		return err
	}

	if n := countIneligible(snap.Farmers); n > 0 {
		return fmt.Errorf("%d of %d farmers have problems", n, len(snap.Farmers))
	}
	return nil
}

type importOutcome struct {
	Session core.Snapshot      `json:"session"`
	DryRun  bool               `json:"dryRun"`
	Result  *core.CommitResult `json:"result,omitempty"`
}

func runImport(ctx context.Context, out io.Writer, st backend, path string, opts runOptions) error {
	svc := core.NewService(st, core.ServiceConfig{})
	sess, snap, err := stage(ctx, svc, path, opts.organization)
	if err != nil {
		return err
	}

	outcome := importOutcome{Session: snap, DryRun: !opts.apply}
	if opts.apply {
		ctx = core.ContextWithActor(ctx, actor())
		res, err := svc.Commit(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("commit: %s", core.FormatUserError(err))
		}
		outcome.Result = &res
	}

	if opts.asJSON {
		if err := writeJSON(out, outcome); err != nil {
			return err
		}
	} else {
		if err := writeReport(out, snap); err != nil {
			return err
		}
		writeOutcome(out, outcome)
	}

	if outcome.Result != nil && outcome.Result.Failed > 0 {
		return fmt.Errorf("%d farmers failed to commit", outcome.Result.Failed)
	}
	return nil
}

// actor names the operator in the import log.
func actor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "farmerctl:" + u.Username
	}
	return "farmerctl"
}

func countIneligible(farmers []*core.StagedFarmer) int {
	n := 0
	for _, f := range farmers {
		if !core.Eligible(f) {
			n++
		}
	}
	return n
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints the parse summary and one line per problem.
func writeReport(out io.Writer, snap core.Snapshot) error {
	st := snap.Stats
	fmt.Fprintf(out, "File:    %s\n", snap.FileName)
	fmt.Fprintf(out, "Farmers: %d (%d valid, %d invalid)\n", st.Farmers, st.ValidFarmers, st.InvalidFarmers)
	fmt.Fprintf(out, "Farms:   %d (%d invalid)\n", st.Farms, st.InvalidFarms)

	if countIneligible(snap.Farmers) == 0 {
		fmt.Fprintln(out, "\nNo problems found.")
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tFARMER\tFIELD\tPROBLEM")
	for _, f := range snap.Farmers {
		for _, e := range f.Errors {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.RowNumber, f.Data.FullName(), e.Field, e.Message)
		}
		for _, farm := range f.Farms {
			for _, e := range farm.Errors {
				fmt.Fprintf(tw, "%d\t%s\tfarm row %d: %s\t%s\n", f.RowNumber, f.Data.FullName(), farm.RowNumber, e.Field, e.Message)
			}
		}
	}
	return tw.Flush()
}

func writeOutcome(out io.Writer, o importOutcome) {
	if o.DryRun {
		ready := len(o.Session.Farmers) - countIneligible(o.Session.Farmers)
		fmt.Fprintf(out, "\nDry run: %d farmers would be committed. Re-run with --apply to write them.\n", ready)
		return
	}

	r := o.Result
	fmt.Fprintf(out, "\nCommitted %d, failed %d, skipped %d.\n", r.Successful, r.Failed, r.Skipped)
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  row %d (%s): %s\n", e.Row, e.Data.FullName(), e.Message)
	}
}
