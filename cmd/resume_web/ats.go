package main

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var atsJobFile string

var atsCmd = &cobra.Command{
	Use:   "ats <resume>",
	Short: "Check how applicant tracking systems read a resume (.pdf, .docx, .doc or .tex)",
	Args:  cobra.ExactArgs(1),
	RunE:  localCommand(runATS),
}

func init() {
	atsCmd.Flags().StringVarP(&atsJobFile, "job", "j", "", "File with a job description to compare keywords against")
	rootCmd.AddCommand(atsCmd)
}

func runATS(ctx context.Context, env *localEnv, args []string) error {
	return analyzeResume(ctx, env, args[0], atsJobFile)
}

// analyzeResume sends a resume for an ATS check. The stored session, when
// present, unlocks the full report.
func analyzeResume(ctx context.Context, env *localEnv, path, jobFile string) error {
	name, content, err := upload.ReadResume(env.fs, path, upload.ResumeMaxBytes)
	if err != nil {
		return err
	}

	req := &types.ATSRequest{Filename: name, Content: content}
	if jobFile != "" {
		jd, err := afero.ReadFile(env.fs, jobFile)
		if err != nil {
			return fmt.Errorf("failed to read job description: %w", err)
		}
		req.JobDescription = string(jd)
	}

	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	report, err := env.backend.AnalyzeATS(ctx, doc.SessionToken(), req)
	if err != nil {
		return err
	}
	env.printer.PrintATS(report)
	return nil
}
