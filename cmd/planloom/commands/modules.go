package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/workshop"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Inspect available coaching modules",
	Long: `List coaching modules and their phase flows.

Built-in modules ship with the binary; extra definitions are loaded
from <user config dir>/planloom/modules and the context's module-dir.

Examples:
  planloom modules
  planloom modules show business_idea --json | jq '.phases[].name'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
			return err
		}
		if err := loadModules(cctx); err != nil {
			return err
		}

		type moduleInfo struct {
			ID     string   `json:"id" yaml:"id"`
			Title  string   `json:"title" yaml:"title"`
			Phases []string `json:"phases" yaml:"phases"`
		}
		infos := make([]moduleInfo, 0)
		for _, id := range workshop.IDs() {
			mod, ok := workshop.Get(id)
			if !ok {
				continue
			}
			infos = append(infos, moduleInfo{ID: id, Title: mod.Title, Phases: mod.PhaseNames()})
		}
		return outputResult(infos)
	},
}

var modulesShowCmd = &cobra.Command{
	Use:   "show <module>",
	Short: "Show one module definition",
	Long:  `Print the full definition of one module: prompt body, phases with guidance and completeness predicates, marker synonyms.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
			return err
		}
		if err := loadModules(cctx); err != nil {
			return err
		}
		mod, ok := workshop.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown module %q", args[0])
		}
		return outputResult(mod)
	},
}

func init() {
	modulesCmd.AddCommand(modulesShowCmd)
}
