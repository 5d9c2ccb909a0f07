package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/validation"
	"github.com/artpar/envswitch/internal/shell/switcher"
	"github.com/artpar/envswitch/internal/shell/transfer"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// =============================================================================
// Settings
// =============================================================================

// updatedAtSource reports when each stored key was last written.
type updatedAtSource interface {
	UpdatedAt(ctx context.Context) (map[domain.SettingKey]time.Time, error)
}

// SettingsCmd shows and edits the top-level settings.
type SettingsCmd struct {
	svc     *switcher.Service
	updated updatedAtSource
}

type SettingsShowInput struct {
	Output string
}

type SettingsSetInput struct {
	Key   string
	Value string
}

func (c SettingsCmd) Show(ctx context.Context, in SettingsShowInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}

	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return printJSON(settings)
	}

	var updated map[domain.SettingKey]time.Time
	if c.updated != nil {
		if updated, err = c.updated.UpdatedAt(ctx); err != nil {
			return err
		}
	}

	rows := pterm.TableData{{"Key", "Value", "Updated"}}
	for _, key := range domain.SettingKeys() {
		when := "default"
		if t, ok := updated[key]; ok {
			when = t.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{string(key), describeValue(settings, key), when})
	}
	return printTable(rows)
}

func (c SettingsCmd) Set(ctx context.Context, in SettingsSetInput) error {
	key, err := domain.ParseSettingKey(in.Key)
	if err != nil {
		return err
	}
	value, err := parseSwitch(in.Value)
	if err != nil {
		return err
	}
	if err := c.svc.SetFlag(ctx, key, value); err != nil {
		return err
	}

	pterm.Success.Printf("Set %s to %t\n", key, value)
	return nil
}

func (c SettingsCmd) ToggleCollapsed(ctx context.Context) error {
	collapsed, err := c.svc.ToggleCollapsed(ctx)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Overlay collapsed: %t\n", collapsed)
	return nil
}

func (c SettingsCmd) Reset(ctx context.Context) error {
	if err := c.svc.Reset(ctx); err != nil {
		return err
	}

	pterm.Success.Println("Settings restored to defaults")
	return nil
}

func (c SettingsCmd) Init(ctx context.Context) error {
	did, err := c.svc.Initialize(ctx)
	if err != nil {
		return err
	}

	if did {
		pterm.Success.Println("Wrote default settings")
	} else {
		pterm.Info.Println("Settings already initialized")
	}
	return nil
}

func describeValue(s domain.Settings, key domain.SettingKey) string {
	switch key {
	case domain.KeyProjects:
		return plural(len(s.Projects), "project")
	case domain.KeyProtocolRules:
		return plural(len(s.ProtocolRules), "rule")
	}
	v, err := s.Flag(key)
	if err != nil {
		return "?"
	}
	return strconv.FormatBool(v)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and edit settings",
	}

	settingsCmd := func(cmd *cobra.Command) (SettingsCmd, error) {
		svc, err := a.service(cmd.Context())
		if err != nil {
			return SettingsCmd{}, err
		}
		return SettingsCmd{svc: svc, updated: a.store}, nil
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := settingsCmd(cmd)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return c.Show(cmd.Context(), SettingsShowInput{Output: output})
		},
	}
	showCmd.Flags().StringP("output", "o", "", "Output format: json")

	keys := make([]string, 0, len(domain.FlagKeys()))
	for _, k := range domain.FlagKeys() {
		keys = append(keys, string(k))
	}
	setCmd := &cobra.Command{
		Use:   "set <key> <on|off>",
		Short: "Set a boolean setting",
		Long:  "Set a boolean setting. Keys: " + strings.Join(keys, ", ") + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := settingsCmd(cmd)
			if err != nil {
				return err
			}
			return c.Set(cmd.Context(), SettingsSetInput{Key: args[0], Value: args[1]})
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle-collapsed",
		Short: "Flip the overlay's collapsed state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := settingsCmd(cmd)
			if err != nil {
				return err
			}
			return c.ToggleCollapsed(cmd.Context())
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings, removing every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := settingsCmd(cmd)
			if err != nil {
				return err
			}
			return c.Reset(cmd.Context())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings if none are stored yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := settingsCmd(cmd)
			if err != nil {
				return err
			}
			return c.Init(cmd.Context())
		},
	}

	cmd.AddCommand(showCmd, setCmd, toggleCmd, resetCmd, initCmd)
	return cmd
}

// =============================================================================
// Protocol Rules
// =============================================================================

// RulesCmd manages protocol rules.
type RulesCmd struct {
	svc *switcher.Service
}

type RulesSetInput struct {
	Rules []string
}

type RulesRemoveInput struct {
	Rule string
}

func (c RulesCmd) List(ctx context.Context) error {
	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}
	if len(settings.ProtocolRules) == 0 {
		pterm.Info.Println("No protocol rules")
		return nil
	}

	problems := map[string]string{}
	for _, p := range validation.ValidateProtocolRules(settings.ProtocolRules) {
		problems[p.Field] = p.Message
	}

	rows := pterm.TableData{{"#", "Pattern", "Protocol", "Status"}}
	for i, raw := range settings.ProtocolRules {
		field := fmt.Sprintf("protocolRules[%d]", i)
		if msg, bad := problems[field]; bad {
			rows = append(rows, []string{strconv.Itoa(i + 1), raw, "-", "ignored: " + msg})
			continue
		}
		rule, _ := domain.ParseProtocolRule(raw)
		rows = append(rows, []string{strconv.Itoa(i + 1), rule.Pattern, rule.Protocol, "ok"})
	}
	return printTable(rows)
}

// Set replaces every rule. Each argument may hold several rules, one per
// line.
func (c RulesCmd) Set(ctx context.Context, in RulesSetInput) error {
	rules := domain.ParseProtocolRulesText(strings.Join(in.Rules, "\n"))
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		s.ProtocolRules = rules
		return nil
	})
	if err != nil {
		return err
	}

	printWarnings(validation.ValidateProtocolRules(rules))
	pterm.Success.Printf("Saved %s\n", plural(len(rules), "rule"))
	return nil
}

func (c RulesCmd) Add(ctx context.Context, in RulesSetInput) error {
	added := domain.ParseProtocolRulesText(strings.Join(in.Rules, "\n"))
	if len(added) == 0 {
		return errors.New("no rules given (expected <pattern>|http or <pattern>|https)")
	}
	updated, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		s.ProtocolRules = append(s.ProtocolRules, added...)
		return nil
	})
	if err != nil {
		return err
	}

	printWarnings(validation.ValidateProtocolRules(updated.ProtocolRules))
	pterm.Success.Printf("Added %s\n", plural(len(added), "rule"))
	return nil
}

func (c RulesCmd) Remove(ctx context.Context, in RulesRemoveInput) error {
	target := strings.TrimSpace(in.Rule)
	_, err := c.svc.Edit(ctx, func(s *domain.Settings) error {
		kept := make([]string, 0, len(s.ProtocolRules))
		for _, r := range s.ProtocolRules {
			if r != target {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(s.ProtocolRules) {
			return fmt.Errorf("rule not found: %s", target)
		}
		s.ProtocolRules = kept
		return nil
	})
	if err != nil {
		return err
	}

	pterm.Success.Printf("Removed %s\n", target)
	return nil
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage protocol rules",
		Long: `Protocol rules force http or https for matching domains, written as
<pattern>|<protocol>, for example "*.dev.example.com|https".`,
	}

	rulesCmd := func(cmd *cobra.Command) (RulesCmd, error) {
		svc, err := a.service(cmd.Context())
		if err != nil {
			return RulesCmd{}, err
		}
		return RulesCmd{svc: svc}, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List protocol rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rulesCmd(cmd)
			if err != nil {
				return err
			}
			return c.List(cmd.Context())
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [rule...]",
		Short: "Replace all protocol rules; no arguments clears them",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rulesCmd(cmd)
			if err != nil {
				return err
			}
			return c.Set(cmd.Context(), RulesSetInput{Rules: args})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <rule>...",
		Short: "Append protocol rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rulesCmd(cmd)
			if err != nil {
				return err
			}
			return c.Add(cmd.Context(), RulesSetInput{Rules: args})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <rule>",
		Short: "Remove a protocol rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rulesCmd(cmd)
			if err != nil {
				return err
			}
			return c.Remove(cmd.Context(), RulesRemoveInput{Rule: args[0]})
		},
	}

	cmd.AddCommand(listCmd, setCmd, addCmd, removeCmd)
	return cmd
}

// =============================================================================
// Export / Import
// =============================================================================

// TransferCmd moves settings in and out of files.
type TransferCmd struct {
	svc *switcher.Service
}

type ExportInput struct {
	Path   string
	Format string
}

type ImportInput struct {
	Path   string
	Format string
	Merge  bool
}

func (c TransferCmd) Export(ctx context.Context, in ExportInput) error {
	format, err := resolveFormat(in.Format, in.Path, transfer.FormatYAML)
	if err != nil {
		return err
	}

	settings, err := c.svc.Settings(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := transfer.Export(&buf, settings, format); err != nil {
		return err
	}

	if in.Path == "" || in.Path == "-" {
		pterm.Print(buf.String())
		return nil
	}
	if err := os.WriteFile(in.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", in.Path, err)
	}
	pterm.Success.Printf("Exported %s to %s\n", plural(len(settings.Projects), "project"), in.Path)
	return nil
}

func (c TransferCmd) Import(ctx context.Context, in ImportInput) error {
	format, err := resolveFormat(in.Format, in.Path, transfer.FormatJSON)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", in.Path, err)
	}
	im, err := transfer.Decode(data, format)
	if err != nil {
		return err
	}

	next := im.Settings
	if in.Merge {
		current, err := c.svc.Settings(ctx)
		if err != nil {
			return err
		}
		if err := im.ApplyTo(&current); err != nil {
			return err
		}
		next = current
	}

	problems, err := c.svc.Replace(ctx, next)
	if errors.Is(err, switcher.ErrInvalidSettings) {
		for _, p := range problems {
			if p.Severity == validation.SeverityError {
				pterm.Error.Println(p.Error())
			}
		}
		return err
	}
	if err != nil {
		return err
	}

	if len(im.Ignored) > 0 {
		pterm.Warning.Printf("Ignored unknown keys: %s\n", strings.Join(im.Ignored, ", "))
	}
	printWarnings(problems)

	keys := make([]string, len(im.Keys))
	for i, k := range im.Keys {
		keys[i] = string(k)
	}
	pterm.Success.Printf("Imported %s\n", strings.Join(keys, ", "))
	return nil
}

// resolveFormat prefers an explicit --format, then the file extension.
func resolveFormat(flag, path string, fallback transfer.Format) (transfer.Format, error) {
	if flag != "" {
		return transfer.ParseFormat(flag)
	}
	if path == "" || path == "-" {
		return fallback, nil
	}
	return transfer.FormatFromPath(path), nil
}

func printWarnings(problems []validation.FieldError) {
	for _, p := range problems {
		if p.Severity == validation.SeverityWarning {
			pterm.Warning.Println(p.Error())
		}
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export settings to a file or stdout",
		Long: `Export every setting keyed like the browser extension's storage. The
format follows the file extension unless --format is given; stdout
defaults to YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			in := ExportInput{}
			if len(args) == 1 {
				in.Path = args[0]
			}
			in.Format, _ = cmd.Flags().GetString("format")
			return TransferCmd{svc: svc}.Export(cmd.Context(), in)
		},
	}
	cmd.Flags().String("format", "", "Output format: yaml or json")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import settings from an export or extension storage dump",
		Long: `Import settings from a YAML or JSON document. Without --merge the
document replaces every setting, with keys it lacks reset to defaults.
With --merge only the keys present in the document are replaced.
Settings with errors, such as duplicate project names, are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			merge, _ := cmd.Flags().GetBool("merge")
			return TransferCmd{svc: svc}.Import(cmd.Context(), ImportInput{
				Path:   args[0],
				Format: format,
				Merge:  merge,
			})
		},
	}
	cmd.Flags().String("format", "", "Input format: yaml or json (default: from the file extension)")
	cmd.Flags().Bool("merge", false, "Replace only the settings present in the file")
	return cmd
}
