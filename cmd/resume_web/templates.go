package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage stored LaTeX templates",
}

var templatesAddCmd = &cobra.Command{
	Use:   "add <file.tex>...",
	Short: "Store one or more .tex templates",
	Args:  cobra.MinimumNArgs(1),
	RunE:  localCommand(runTemplatesAdd),
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates; the selected one is marked with *",
	Args:  cobra.NoArgs,
	RunE:  localCommand(runTemplatesList),
}

var templatesRmCmd = &cobra.Command{
	Use:   "rm <id|name>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE:  localCommand(runTemplatesRm),
}

var templatesSelectCmd = &cobra.Command{
	Use:   "select <id|name>",
	Short: "Choose the template used for optimizations",
	Args:  cobra.ExactArgs(1),
	RunE:  localCommand(runTemplatesSelect),
}

func init() {
	templatesCmd.AddCommand(templatesAddCmd, templatesListCmd, templatesRmCmd, templatesSelectCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesAdd(ctx context.Context, env *localEnv, paths []string) error {
	for _, path := range paths {
		tmpl, err := addTemplateFile(ctx, env, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Added %s (%s)\n", tmpl.Name, tmpl.ID)
	}
	return runTemplatesList(ctx, env, nil)
}

// addTemplateFile validates a template file and stores it. Nothing is stored
// when validation fails.
func addTemplateFile(ctx context.Context, env *localEnv, path string) (*types.Template, error) {
	name, content, err := upload.ReadTemplate(env.fs, path, config.DefaultMaxTemplateBytes)
	if err != nil {
		return nil, err
	}
	return env.store.AddTemplate(ctx, localOwner, name, content)
}

func runTemplatesList(ctx context.Context, env *localEnv, _ []string) error {
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	env.printer.PrintTemplates(doc.TemplateSummaries())
	return nil
}

func runTemplatesRm(ctx context.Context, env *localEnv, args []string) error {
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	id, err := resolveTemplate(doc, args[0])
	if err != nil {
		return err
	}
	doc, err = env.store.DeleteTemplate(ctx, localOwner, id)
	if err != nil {
		return err
	}
	env.printer.PrintTemplates(doc.TemplateSummaries())
	return nil
}

func runTemplatesSelect(ctx context.Context, env *localEnv, args []string) error {
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	id, err := resolveTemplate(doc, args[0])
	if err != nil {
		return err
	}
	if err := env.store.SelectTemplate(ctx, localOwner, id); err != nil {
		return err
	}
	return runTemplatesList(ctx, env, nil)
}

// resolveTemplate accepts a full id, the short id shown by "templates list",
// or a file name. Ambiguous references are rejected.
func resolveTemplate(doc *state.Document, ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return uuid.Nil, fmt.Errorf("template id or name is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		if _, ok := doc.Template(id); !ok {
			return uuid.Nil, state.ErrTemplateNotFound
		}
		return id, nil
	}

	var matches []uuid.UUID
	for _, t := range doc.Templates {
		if t.Name == ref || strings.HasPrefix(t.ID.String(), strings.ToLower(ref)) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: %s", state.ErrTemplateNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("%q matches %d templates; use the id", ref, len(matches))
	}
}
