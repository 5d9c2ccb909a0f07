package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/validation"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// =============================================================================
// Projects
// =============================================================================

// ProjectCmd manages projects.
type ProjectCmd struct {
	svc *switcher.Service
}

type ProjectListInput struct {
	Output string
}

type ProjectShowInput struct {
	Name   string
	Output string
}

type ProjectAddInput struct {
	Name    string
	Domains []string
}

type ProjectRenameInput struct {
	Name    string
	NewName string
}

type ProjectDeleteInput struct {
	Name string
}

type ProjectFloatingInput struct {
	Name    string
	Enabled bool
}

func (c ProjectCmd) List(ctx context.Context, in ProjectListInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return printJSON(settings.Projects)
	}
	if len(settings.Projects) == 0 {
		pterm.Info.Println("No projects configured")
		return nil
	}

	rows := pterm.TableData{{"Name", "Domains", "Tools", "Overlay"}}
	for _, p := range settings.Projects {
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(len(p.Domains)),
			strconv.Itoa(len(p.Tools)),
			yesNo(p.FloatingEnabled),
		})
	}
	return printTable(rows)
}

func (c ProjectCmd) Show(ctx context.Context, in ProjectShowInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}
	p, err := settings.FindProject(in.Name)
	if err != nil {
		return fmt.Errorf("%w: %s", err, in.Name)
	}

	if in.Output == "json" {
		return printJSON(p)
	}

	pterm.Info.Printf("Project %s (overlay %s)\n", p.Name, onOff(p.FloatingEnabled))
	if len(p.Domains) == 0 {
		pterm.Info.Println("No domains")
	} else {
		rows := pterm.TableData{{"Domain", "Label"}}
		for _, d := range p.Domains {
			label := ""
			if !d.IsBare() {
				label = d.Label
			}
			rows = append(rows, []string{d.Domain, orDash(label)})
		}
		if err := printTable(rows); err != nil {
			return err
		}
	}

	if len(p.Tools) > 0 {
		rows := pterm.TableData{{"Tool", "URL"}}
		for _, t := range p.Tools {
			rows = append(rows, []string{t.Label, t.URL})
		}
		return printTable(rows)
	}
	return nil
}

func (c ProjectCmd) Add(ctx context.Context, in ProjectAddInput) error {
	var name string
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		if err := checkProjectName(s, in.Name, ""); err != nil {
			return err
		}
		p, err := s.AddProject(in.Name)
		if err != nil {
			return err
		}
		name = p.Name
		for _, d := range in.Domains {
			value, label, _ := strings.Cut(d, "=")
			if err := s.AddDomain(name, value, label); err != nil {
				return fmt.Errorf("%w: %s", err, value)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Created project %s\n", name)
	return nil
}

func (c ProjectCmd) Rename(ctx context.Context, in ProjectRenameInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		if _, err := s.FindProject(in.Name); err != nil {
			return err
		}
		if err := checkProjectName(s, in.NewName, in.Name); err != nil {
			return err
		}
		return s.RenameProject(in.Name, in.NewName)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Renamed project %s to %s\n", in.Name, strings.TrimSpace(in.NewName))
	return nil
}

func (c ProjectCmd) Delete(ctx context.Context, in ProjectDeleteInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		return s.DeleteProject(in.Name)
	})
	if err != nil {
		return fmt.Errorf("%w: %s", err, in.Name)
	}

	pterm.Success.Printf("Deleted project %s\n", in.Name)
	return nil
}

func (c ProjectCmd) Floating(ctx context.Context, in ProjectFloatingInput) error {
	if err := c.svc.ToggleFloating(ctx, in.Name, in.Enabled); err != nil {
		return fmt.Errorf("%w: %s", err, in.Name)
	}

	pterm.Success.Printf("Overlay %s for %s\n", onOff(in.Enabled), in.Name)
	return nil
}

// checkProjectName rejects an empty name or one another project already
// uses. current is the project being renamed, empty for a new one.
func checkProjectName(s *domain.Settings, name, current string) error {
	field, msg := validation.ValidateProjectName(name, s.ProjectNames(), current)
	if field == "" {
		return nil
	}
	return validation.FieldError{Field: field, Message: msg, Severity: validation.SeverityError}
}

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "A project groups the domains of one application's environments.",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return ProjectCmd{svc: svc}.List(cmd.Context(), ProjectListInput{Output: output})
		},
	}
	listCmd.Flags().StringP("output", "o", "", "Output format: json")

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a project's domains and tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return ProjectCmd{svc: svc}.Show(cmd.Context(), ProjectShowInput{Name: args[0], Output: output})
		},
	}
	showCmd.Flags().StringP("output", "o", "", "Output format: json")

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			domains, _ := cmd.Flags().GetStringArray("domain")
			return ProjectCmd{svc: svc}.Add(cmd.Context(), ProjectAddInput{Name: args[0], Domains: domains})
		},
	}
	addCmd.Flags().StringArray("domain", nil, "Domain to add, as domain or domain=Label (repeatable)")

	renameCmd := &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return ProjectCmd{svc: svc}.Rename(cmd.Context(), ProjectRenameInput{Name: args[0], NewName: args[1]})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return ProjectCmd{svc: svc}.Delete(cmd.Context(), ProjectDeleteInput{Name: args[0]})
		},
	}

	floatingCmd := &cobra.Command{
		Use:   "floating <name> <on|off>",
		Short: "Turn the in-page overlay on or off for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return ProjectCmd{svc: svc}.Floating(cmd.Context(), ProjectFloatingInput{Name: args[0], Enabled: enabled})
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, renameCmd, deleteCmd, floatingCmd)
	return cmd
}

// =============================================================================
// Domains
// =============================================================================

// DomainCmd manages the domain entries of a project.
type DomainCmd struct {
	svc *switcher.Service
}

type DomainAddInput struct {
	Project string
	Domain  string
	Label   string
}

type DomainEditInput struct {
	Project   string
	Domain    string
	NewDomain string
	// Label replaces the entry's label when non-nil; an empty label makes
	// the entry bare.
	Label *string
}

type DomainRemoveInput struct {
	Project string
	Domain  string
}

func (c DomainCmd) Add(ctx context.Context, in DomainAddInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		return s.AddDomain(in.Project, in.Domain, in.Label)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Added %s to %s\n", strings.TrimSpace(in.Domain), in.Project)
	return nil
}

func (c DomainCmd) Edit(ctx context.Context, in DomainEditInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		label := ""
		if in.Label != nil {
			label = *in.Label
		} else if p, err := s.FindProject(in.Project); err == nil {
			for _, d := range p.Domains {
				if d.Domain == in.Domain && !d.IsBare() {
					label = d.Label
				}
			}
		}
		return s.EditDomain(in.Project, in.Domain, in.NewDomain, label)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Updated %s in %s\n", strings.TrimSpace(in.NewDomain), in.Project)
	return nil
}

func (c DomainCmd) Remove(ctx context.Context, in DomainRemoveInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		return s.RemoveDomain(in.Project, in.Domain)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Removed %s from %s\n", in.Domain, in.Project)
	return nil
}

func newDomainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Manage a project's domains",
		Long: `Manage the domain entries of a project. An entry is an exact hostname
or a wildcard pattern such as *.dev.example.com; hostnames reached
through a wildcard are learned into the project automatically.`,
	}

	addCmd := &cobra.Command{
		Use:   "add <project> <domain>",
		Short: "Add a domain to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			label, _ := cmd.Flags().GetString("label")
			return DomainCmd{svc: svc}.Add(cmd.Context(), DomainAddInput{Project: args[0], Domain: args[1], Label: label})
		},
	}
	addCmd.Flags().String("label", "", "Display label, e.g. Staging")

	editCmd := &cobra.Command{
		Use:   "edit <project> <domain> <new-domain>",
		Short: "Change a domain entry in place",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			in := DomainEditInput{Project: args[0], Domain: args[1], NewDomain: args[2]}
			if cmd.Flags().Changed("label") {
				label, _ := cmd.Flags().GetString("label")
				in.Label = &label
			}
			return DomainCmd{svc: svc}.Edit(cmd.Context(), in)
		},
	}
	editCmd.Flags().String("label", "", "New display label; empty removes it (default: keep)")

	removeCmd := &cobra.Command{
		Use:   "remove <project> <domain>",
		Short: "Remove a domain from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return DomainCmd{svc: svc}.Remove(cmd.Context(), DomainRemoveInput{Project: args[0], Domain: args[1]})
		},
	}

	cmd.AddCommand(addCmd, editCmd, removeCmd)
	return cmd
}

// =============================================================================
// Tools
// =============================================================================

// ToolCmd manages a project's shortcut links.
type ToolCmd struct {
	svc *switcher.Service
}

type ToolAddInput struct {
	Project string
	URL     string
	Label   string
}

type ToolRemoveInput struct {
	Project string
	URL     string
}

func (c ToolCmd) Add(ctx context.Context, in ToolAddInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		return s.AddTool(in.Project, in.URL, in.Label)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Added tool %s to %s\n", strings.TrimSpace(in.URL), in.Project)
	return nil
}

func (c ToolCmd) Remove(ctx context.Context, in ToolRemoveInput) error {
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		return s.RemoveTool(in.Project, in.URL)
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Removed tool %s from %s\n", in.URL, in.Project)
	return nil
}

func newToolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Manage a project's tool links",
	}

	addCmd := &cobra.Command{
		Use:   "add <project> <url>",
		Short: "Add a tool link; an existing link with the same URL is replaced",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			label, _ := cmd.Flags().GetString("label")
			return ToolCmd{svc: svc}.Add(cmd.Context(), ToolAddInput{Project: args[0], URL: args[1], Label: label})
		},
	}
	addCmd.Flags().String("label", "", "Display label (default: the URL)")

	removeCmd := &cobra.Command{
		Use:   "remove <project> <url>",
		Short: "Remove a tool link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return ToolCmd{svc: svc}.Remove(cmd.Context(), ToolRemoveInput{Project: args[0], URL: args[1]})
		},
	}

	cmd.AddCommand(addCmd, removeCmd)
	return cmd
}

// =============================================================================
// Helpers
// =============================================================================

// parseSwitch accepts on/off as well as anything strconv.ParseBool does.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid value %q (expected on or off)", s)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
