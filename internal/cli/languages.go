package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/codalotl/sampleverify/internal/oracle"
	"github.com/codalotl/sampleverify/internal/output"
	"github.com/codalotl/sampleverify/internal/setup"
)

func newLanguagesCmd(g *globalOptions) *cobra.Command {
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "languages",
		Short: "List the languages samples can be verified in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(envOptions{})
			if err != nil {
				return err
			}
			registry, err := oracle.LoadRegistry(cfg.LanguagesFile)
			if err != nil {
				return fmt.Errorf("load languages: %w", err)
			}
			out := cmd.OutOrStdout()
			_, err = fmt.Fprintln(out, languagesTable(registry.Definitions(), !output.IsTerminal(out)))
			return err
		},
	})
	return cmd
}

// languagesTable renders defs as a bordered table, or space-aligned columns when plain.
func languagesTable(defs []oracle.Definition, plain bool) string {
	border := lipgloss.NormalBorder()
	if plain {
		border = lipgloss.HiddenBorder()
	}
	t := table.New().
		Border(border).
		Headers("LANGUAGE", "ALIASES", "IMAGE", "CHECK")
	for _, def := range defs {
		t.Row(def.Name, strings.Join(def.Aliases, ", "), def.Image, def.Check)
	}
	return t.String()
}

func newSetupCmd(g *globalOptions) *cobra.Command {
	var force bool
	cmd := silenceUsageAndErrors(&cobra.Command{
		Use:   "setup [language...]",
		Short: "Pull the container images used to type-check samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.env(envOptions{out: cmd.OutOrStdout(), noRepair: true})
			if err != nil {
				return err
			}
			images, err := env.registry.Images(args...)
			if err != nil {
				return err
			}
			return setup.Run(cmd.Context(), env.printer, env.provider, images, force)
		},
	})
	cmd.Flags().BoolVar(&force, "force", false, "pull images even when already present")
	return cmd
}
