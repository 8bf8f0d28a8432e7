package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/spf13/cobra"
)

// statsDays is the window of the locally computed usage summary.
const statsDays = 7

var (
	statusWatch bool
	statusOut   string
	resultOut   string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show recent optimizations, or the status of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  localCommand(runStatus),
}

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Show the result of a finished optimization and optionally save its files",
	Args:  cobra.ExactArgs(1),
	RunE:  localCommand(runResult),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete an optimization remotely and from local history",
	Args:  cobra.ExactArgs(1),
	RunE:  localCommand(runDelete),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	Args:  cobra.NoArgs,
	RunE:  localCommand(runStats),
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Follow the job until it finishes")
	statusCmd.Flags().StringVarP(&statusOut, "out", "o", "", "With --watch, directory to write the optimized files to")
	resultCmd.Flags().StringVarP(&resultOut, "out", "o", "", "Directory to write the optimized files to")
	rootCmd.AddCommand(statusCmd, resultCmd, deleteCmd, statsCmd)
}

func runStatus(ctx context.Context, env *localEnv, args []string) error {
	if len(args) == 0 {
		records, err := env.jobs.List(ctx, localOwner)
		if err != nil {
			return err
		}
		env.printer.PrintJobs(records)
		return nil
	}

	jobID := args[0]
	if _, err := env.store.FindJob(ctx, localOwner, jobID); err != nil {
		return err
	}

	if statusWatch {
		outcome, err := waitForJob(ctx, env, jobID)
		if err != nil {
			return err
		}
		return finishJob(ctx, env, jobID, outcome, statusOut)
	}

	st, err := env.jobs.Status(ctx, localOwner, jobID)
	if err != nil {
		return err
	}
	env.printer.PrintStatus(st)
	return nil
}

func runResult(ctx context.Context, env *localEnv, args []string) error {
	return showResult(ctx, env, args[0], resultOut)
}

func showResult(ctx context.Context, env *localEnv, jobID, out string) error {
	if _, err := env.store.FindJob(ctx, localOwner, jobID); err != nil {
		return err
	}
	res, err := env.jobs.Result(ctx, localOwner, jobID)
	if err != nil {
		return err
	}
	env.printer.PrintResult(res)
	return writeArtifacts(ctx, env, jobID, res, out)
}

func runDelete(ctx context.Context, env *localEnv, args []string) error {
	if err := env.jobs.Delete(ctx, localOwner, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Deleted %s\n", args[0])
	return nil
}

func runStats(ctx context.Context, env *localEnv, _ []string) error {
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}

	if token := doc.SessionToken(); token != "" {
		d, err := env.backend.Dashboard(ctx, token)
		if err == nil {
			env.printer.PrintDashboard(d)
			return nil
		}
		env.logger.Warn("backend statistics unavailable, using local history", "error", err)
	}

	local := types.SummarizeJobs(doc.Jobs, time.Now().UTC(), statsDays)
	env.printer.PrintDashboard(&local)
	fmt.Fprintln(env.out, "(computed from local history)")
	return nil
}

// writeArtifacts saves the optimized source, the PDF and any generated
// letters to dir. An empty dir writes nothing.
func writeArtifacts(ctx context.Context, env *localEnv, jobID string, res *types.JobResult, dir string) error {
	if dir == "" || res == nil {
		return nil
	}
	if err := env.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rec, err := env.store.FindJob(ctx, localOwner, jobID)
	if err != nil {
		return err
	}
	base := filepath.Join(dir, artifactBase(rec.CompanyName))

	texts := []struct {
		path    string
		content string
	}{
		{base + ".tex", res.OptimizedTex},
		{base + "-cover-letter.txt", res.CoverLetter},
		{base + "-cold-email.txt", res.ColdEmail},
	}
	for _, t := range texts {
		if t.content == "" {
			continue
		}
		if err := writeFile(env, t.path, strings.NewReader(t.content)); err != nil {
			return err
		}
	}

	ref := rec.PDFURL
	if ref == "" {
		ref = res.PDFDownloadURL
	}
	if ref == "" {
		return nil
	}
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	dl, err := env.backend.Download(ctx, doc.SessionToken(), ref)
	if err != nil {
		return fmt.Errorf("failed to download PDF: %w", err)
	}
	defer dl.Body.Close()
	return writeFile(env, base+".pdf", dl.Body)
}

func writeFile(env *localEnv, path string, r io.Reader) error {
	f, err := env.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(env.out, "Wrote %s\n", path)
	return nil
}

// artifactBase builds a file name stem like "resume-acme".
func artifactBase(company string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(company) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			b.WriteByte('-')
		}
	}
	if slug := strings.Trim(b.String(), "-"); slug != "" {
		return "resume-" + slug
	}
	return "resume"
}
