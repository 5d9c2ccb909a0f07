package main

import (
	"context"

	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// =============================================================================
// Resolve
// =============================================================================

// ResolveCmd shows the project and environments for a page.
type ResolveCmd struct {
	svc *switcher.Service
}

type ResolveInput struct {
	URL    string
	Output string
}

func (c ResolveCmd) Run(ctx context.Context, in ResolveInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	view, err := c.svc.Context(ctx, in.URL)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return printJSON(view)
	}

	if view.Project == nil {
		pterm.Warning.Printf("No project contains %s\n", view.Location.Hostname)
		return nil
	}
	if view.IsNewlyLearned {
		pterm.Success.Printf("Learned %s into project %s\n", view.Location.Hostname, view.Project.Name)
	}
	if view.MatchedDomain != nil {
		pterm.Info.Printf("Project %s, matched %s\n", view.Project.Name, view.MatchedDomain.Domain)
	}

	rows := pterm.TableData{{"Current", "Label", "Domain", "Protocol"}}
	for _, ch := range view.Choices {
		current := ""
		if ch.Selected {
			current = "*"
		}
		protocol := ch.Protocol
		if ch.Locked {
			protocol += " (rule)"
		}
		rows = append(rows, []string{current, ch.Label, ch.Domain, protocol})
	}
	return printTable(rows)
}

func newResolveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Show the project and environments for a page",
		Long: `Resolve the hostname of a page URL against the configured projects.
A hostname reached through a wildcard entry is learned into its project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return ResolveCmd{svc: svc}.Run(cmd.Context(), ResolveInput{URL: args[0], Output: output})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output format: json")
	return cmd
}

// =============================================================================
// Switch
// =============================================================================

// SwitchCmd opens a page on another environment.
type SwitchCmd struct {
	svc *switcher.Service
}

type SwitchInput struct {
	URL      string
	Domain   string
	Protocol string
	DryRun   bool
	Output   string
}

func (c SwitchCmd) Run(ctx context.Context, in SwitchInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	result, err := c.svc.Switch(ctx, switcher.SwitchRequest{
		PageURL:  in.URL,
		Domain:   in.Domain,
		Protocol: in.Protocol,
		DryRun:   in.DryRun,
	})
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return printJSON(result)
	}
	if in.DryRun {
		pterm.Println(result.URL)
		return nil
	}
	pterm.Success.Printf("Opened %s (%s)\n", result.URL, result.Options.Target())
	return nil
}

func newSwitchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch <url> <domain>",
		Short: "Open a page on another environment",
		Long: `Open the same path, query and fragment of a page on another domain.
Protocol rules matching the domain override --protocol. The newWindow and
incognitoMode settings decide where the page opens.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			protocol, _ := cmd.Flags().GetString("protocol")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			output, _ := cmd.Flags().GetString("output")
			return SwitchCmd{svc: svc}.Run(cmd.Context(), SwitchInput{
				URL:      args[0],
				Domain:   args[1],
				Protocol: protocol,
				DryRun:   dryRun,
				Output:   output,
			})
		},
	}
	cmd.Flags().String("protocol", "", "Protocol to use: http or https (default: the page's)")
	cmd.Flags().Bool("dry-run", false, "Print the target URL without opening it")
	cmd.Flags().StringP("output", "o", "", "Output format: json")
	return cmd
}

// =============================================================================
// Copy
// =============================================================================

// CopyCmd copies a page path or environment URL to the clipboard.
type CopyCmd struct {
	svc *switcher.Service
}

type CopyInput struct {
	URL      string
	Domain   string
	Protocol string
}

func (c CopyCmd) Path(ctx context.Context, in CopyInput) error {
	text, err := c.svc.CopyPath(ctx, in.URL)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Copied %s\n", text)
	return nil
}

func (c CopyCmd) URL(ctx context.Context, in CopyInput) error {
	text, err := c.svc.CopyURL(ctx, in.URL, in.Domain, in.Protocol)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Copied %s\n", text)
	return nil
}

func newCopyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy a page path or environment URL to the clipboard",
	}

	pathCmd := &cobra.Command{
		Use:   "path <url>",
		Short: "Copy the path, query and fragment of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return CopyCmd{svc: svc}.Path(cmd.Context(), CopyInput{URL: args[0]})
		},
	}

	urlCmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Copy the URL a switch would open",
		Long: `Copy the URL a switch to --domain would open. Without --domain the
page's own URL is copied with protocol rules applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			domainName, _ := cmd.Flags().GetString("domain")
			protocol, _ := cmd.Flags().GetString("protocol")
			return CopyCmd{svc: svc}.URL(cmd.Context(), CopyInput{
				URL:      args[0],
				Domain:   domainName,
				Protocol: protocol,
			})
		},
	}
	urlCmd.Flags().String("domain", "", "Target domain (default: the page's)")
	urlCmd.Flags().String("protocol", "", "Protocol to use: http or https (default: the page's)")

	cmd.AddCommand(pathCmd, urlCmd)
	return cmd
}

