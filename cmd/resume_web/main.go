// Package main provides the entry point for the Resume Optimizer web server and CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var rootCmd = &cobra.Command{
	Use:   "resume_web",
	Short: "Resume Optimizer web application and CLI",
	Long: `Resume Optimizer tailors LaTeX resumes to job postings through a remote optimization backend.

"serve" runs the web application. The other commands work against a local state file,
so a single user can manage templates, connect a provider and run optimizations from a terminal.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
