package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/polling"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Tailor the selected template to a job posting",
	Long: `Submit an optimization to the backend and follow it until it finishes.

The job description comes from a text file (--job) or a job board URL (--job-url).
Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	Args: cobra.NoArgs,
	RunE: localCommand(runOptimize),
}

var (
	optTemplate     string
	optJob          string
	optJobURL       string
	optCompany      string
	optInstructions string
	optOut          string
	optCoverLetter  bool
	optColdEmail    bool
	optUseBrowser   bool
	optDetach       bool
)

func init() {
	optimizeCmd.Flags().StringVarP(&optTemplate, "template", "t", "", "Path to a LaTeX template (defaults to the selected stored template)")
	optimizeCmd.Flags().StringVarP(&optJob, "job", "j", "", "Path to job posting text file (mutually exclusive with --job-url)")
	optimizeCmd.Flags().StringVar(&optJobURL, "job-url", "", "URL to fetch job posting from (mutually exclusive with --job)")
	optimizeCmd.Flags().StringVarP(&optCompany, "company", "c", "", "Target company name")
	optimizeCmd.Flags().StringVar(&optInstructions, "instructions", "", "Custom instructions for the optimizer")
	optimizeCmd.Flags().StringVarP(&optOut, "out", "o", "", "Directory to write the optimized files to")
	optimizeCmd.Flags().BoolVar(&optCoverLetter, "cover-letter", false, "Also generate a cover letter")
	optimizeCmd.Flags().BoolVar(&optColdEmail, "cold-email", false, "Also generate a cold email")
	optimizeCmd.Flags().BoolVar(&optUseBrowser, "use-browser", false, "Use headless browser for SPA job boards (requires Chrome)")
	optimizeCmd.Flags().BoolVar(&optDetach, "detach", false, "Submit and return without waiting for the result")
	rootCmd.AddCommand(optimizeCmd)
}

// optimizeRequest is the merged view of flags and config file.
type optimizeRequest struct {
	Config config.Config
	Out    string
	Detach bool
}

func runOptimize(ctx context.Context, env *localEnv, _ []string) error {
	flags := config.Config{
		Template:     optTemplate,
		Job:          optJob,
		JobURL:       optJobURL,
		Company:      optCompany,
		Instructions: optInstructions,
	}
	merged := flags.MergeWithDefaults(env.cfg)
	merged.CoverLetter = optCoverLetter || env.cfg.CoverLetter
	merged.ColdEmail = optColdEmail || env.cfg.ColdEmail
	merged.UseBrowser = optUseBrowser || env.cfg.UseBrowser
	env.cfg.UseBrowser = merged.UseBrowser

	return optimize(ctx, env, optimizeRequest{Config: merged, Out: optOut, Detach: optDetach})
}

func optimize(ctx context.Context, env *localEnv, req optimizeRequest) error {
	cfg := req.Config
	if cfg.Job != "" && cfg.JobURL != "" {
		return fmt.Errorf("--job and --job-url are mutually exclusive; provide only one")
	}
	if cfg.Job == "" && cfg.JobURL == "" {
		return fmt.Errorf("either --job or --job-url must be provided")
	}
	if strings.TrimSpace(cfg.Company) == "" {
		return fmt.Errorf("--company is required")
	}

	description, err := jobDescription(ctx, env, cfg)
	if err != nil {
		return err
	}

	var templateID uuid.UUID
	if cfg.Template != "" {
		templateID, err = ensureTemplate(ctx, env, cfg.Template)
		if err != nil {
			return err
		}
	}

	rec, err := env.jobs.Submit(ctx, localOwner, types.SubmitInput{
		TemplateID:          templateID,
		JobDescription:      description,
		CompanyName:         cfg.Company,
		CustomInstructions:  cfg.Instructions,
		GenerateColdEmail:   cfg.ColdEmail,
		GenerateCoverLetter: cfg.CoverLetter,
	})
	if err != nil {
		return err
	}
	env.printer.PrintSubmitted(rec)

	if req.Detach {
		fmt.Fprintf(env.out, "Follow it with: resume_web status --watch %s\n", rec.ID)
		return nil
	}

	outcome, err := waitForJob(ctx, env, rec.ID)
	if err != nil {
		return err
	}
	return finishJob(ctx, env, rec.ID, outcome, req.Out)
}

// jobDescription reads the posting from a file or imports it from a URL.
func jobDescription(ctx context.Context, env *localEnv, cfg config.Config) (string, error) {
	if cfg.Job != "" {
		content, err := afero.ReadFile(env.fs, cfg.Job)
		if err != nil {
			return "", fmt.Errorf("failed to read job posting: %w", err)
		}
		return string(content), nil
	}

	jd, err := env.jobImporter().Import(ctx, cfg.JobURL)
	if err != nil {
		return "", fmt.Errorf("failed to import job posting: %w", err)
	}
	env.logger.Debug("imported job posting", "url", jd.URL, "platform", jd.Platform, "source", jd.Source, "chars", len(jd.Text))
	return jd.Text, nil
}

// ensureTemplate returns the id of the stored template with the same name and
// content as the file at path, storing the file if there is none.
func ensureTemplate(ctx context.Context, env *localEnv, path string) (uuid.UUID, error) {
	name, content, err := upload.ReadTemplate(env.fs, path, config.DefaultMaxTemplateBytes)
	if err != nil {
		return uuid.Nil, err
	}

	doc, err := env.document(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	for _, t := range doc.Templates {
		if t.Name == name && t.Content == string(content) {
			return t.ID, nil
		}
	}

	tmpl, err := env.store.AddTemplate(ctx, localOwner, name, content)
	if err != nil {
		return uuid.Nil, err
	}
	fmt.Fprintf(env.out, "Stored template %s (%s)\n", tmpl.Name, tmpl.ID)
	return tmpl.ID, nil
}

// waitForJob prints every status until the job is terminal or ctx ends.
func waitForJob(ctx context.Context, env *localEnv, jobID string) (polling.Outcome, error) {
	sub, err := env.jobs.Watch(ctx, localOwner, jobID, jobs.Observer{
		OnStatus:             env.printer.PrintStatus,
		FetchResultOnFailure: true,
	})
	if err != nil {
		return polling.Outcome{}, err
	}
	defer sub.Stop()
	return sub.Wait(ctx)
}

// finishJob reports a finished job and writes its artifacts to out, if set.
func finishJob(ctx context.Context, env *localEnv, jobID string, outcome polling.Outcome, out string) error {
	if outcome.Completed() {
		res := outcome.Result
		if res == nil {
			var err error
			if res, err = env.jobs.Result(ctx, localOwner, jobID); err != nil {
				return fmt.Errorf("job completed but the result could not be fetched: %w", err)
			}
		}
		env.printer.PrintResult(res)
		return writeArtifacts(ctx, env, jobID, res, out)
	}

	var failed *polling.JobFailedError
	if !errors.As(outcome.Err, &failed) {
		return outcome.Err
	}
	// The source is still useful when only compilation failed.
	if outcome.Result != nil {
		env.printer.PrintResult(outcome.Result)
		if err := writeArtifacts(ctx, env, jobID, outcome.Result, out); err != nil {
			env.logger.Warn("failed to write partial result", "job_id", jobID, "error", err)
		}
	}
	return fmt.Errorf("optimization failed: %s", failed.Message)
}
