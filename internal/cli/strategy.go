package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/anmolg1997/kg-rag/internal/util"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Inspect and tune extraction and retrieval strategies",
}

var strategyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active strategies",
	Args:  cobra.NoArgs,
	RunE:  runStrategyShow,
}

var strategyPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE:  runStrategyPresets,
}

var strategyUseCmd = &cobra.Command{
	Use:   "use [preset]",
	Short: "Activate a preset and persist it",
	Long: `Activates the named preset and writes it to the strategy file so
subsequent commands pick it up. The file path comes from --file or the
STRATEGY_FILE environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: runStrategyUse,
}

var strategySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Apply partial strategy updates",
	Long: `Applies JSON updates to the active strategies. Nested objects merge
recursively; everything else replaces the current value.

  kgrag strategy set --retrieval '{"limits":{"max_chunks":30}}'`,
	Args: cobra.NoArgs,
	RunE: runStrategySet,
}

var strategySaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Save the active strategies to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategySave,
}

var strategyLoadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Load strategies from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategyLoad,
}

var (
	strategyJSON       bool
	strategyPresetFlag string
	strategyFileFlag   string
	extractionUpdates  string
	retrievalUpdates   string
)

// strategyFilePath resolves the persisted strategy file location.
func strategyFilePath() string {
	if strategyFileFlag != "" {
		return strategyFileFlag
	}
	return util.GetEnvString("STRATEGY_FILE", "strategy.yaml")
}

func init() {
	strategyShowCmd.Flags().BoolVar(&strategyJSON, "json", false, "Output as JSON")
	strategyShowCmd.Flags().StringVarP(&strategyPresetFlag, "preset", "p", "", "Show after loading this preset")

	strategySetCmd.Flags().StringVarP(&strategyPresetFlag, "preset", "p", "", "Start from this preset before applying updates")
	strategySetCmd.Flags().StringVar(&extractionUpdates, "extraction", "", "JSON updates for the extraction strategy")
	strategySetCmd.Flags().StringVar(&retrievalUpdates, "retrieval", "", "JSON updates for the retrieval strategy")

	strategySaveCmd.Flags().StringVarP(&strategyPresetFlag, "preset", "p", "", "Save this preset instead of the default")
	strategyLoadCmd.Flags().BoolVar(&strategyJSON, "json", false, "Output the loaded strategies as JSON")

	strategyUseCmd.Flags().StringVar(&strategyFileFlag, "file", "", "Strategy file to write (default $STRATEGY_FILE or strategy.yaml)")

	strategyCmd.AddCommand(strategyShowCmd)
	strategyCmd.AddCommand(strategyPresetsCmd)
	strategyCmd.AddCommand(strategyUseCmd)
	strategyCmd.AddCommand(strategySetCmd)
	strategyCmd.AddCommand(strategySaveCmd)
	strategyCmd.AddCommand(strategyLoadCmd)
	rootCmd.AddCommand(strategyCmd)
}

// newManager builds a strategy manager seeded from the --preset flag, the
// STRATEGY_PRESET env var, or the balanced preset. Without an explicit
// --preset, a persisted strategy file takes precedence.
func newManager() (*strategy.Manager, error) {
	preset := strategyPresetFlag
	if preset == "" {
		preset = util.GetEnvString("STRATEGY_PRESET", strategy.PresetBalanced)
	}

	manager, err := strategy.NewManager(preset)
	if err != nil {
		return nil, err
	}

	if strategyPresetFlag == "" {
		if path := strategyFilePath(); path != "" {
			if _, statErr := os.Stat(path); statErr == nil {
				if _, err := manager.LoadFile(path); err != nil {
					return nil, err
				}
			}
		}
	}
	return manager, nil
}

func runStrategyShow(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	status := manager.Status()

	if strategyJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	printStatus(cmd, status)
	return nil
}

func printStatus(cmd *cobra.Command, status strategy.Status) {
	preset := status.CurrentPreset
	if preset == "" {
		preset = "custom"
	}
	cmd.Printf("Active preset: %s\n\n", preset)

	cmd.Printf("Extraction: %s\n", status.Extraction.Name)
	cmd.Printf("  %s\n", status.Extraction.Description)
	cmd.Printf("  Chunks enabled:  %t\n", status.Extraction.ChunksEnabled)
	cmd.Printf("  Entity linking:  %t\n", status.Extraction.EntityLinking)
	for _, name := range sortedKeys(status.Extraction.MetadataEnabled) {
		cmd.Printf("  Metadata %-10s %t\n", name+":", status.Extraction.MetadataEnabled[name])
	}

	cmd.Printf("\nRetrieval: %s\n", status.Retrieval.Name)
	cmd.Printf("  %s\n", status.Retrieval.Description)
	for _, name := range sortedKeys(status.Retrieval.SearchMethods) {
		cmd.Printf("  Method %-18s %t\n", name+":", status.Retrieval.SearchMethods[name])
	}
	cmd.Printf("  Context expansion: %t\n", status.Retrieval.ContextExpansion)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runStrategyPresets(cmd *cobra.Command, args []string) error {
	for _, info := range strategy.ListPresets() {
		cmd.Printf("%s\n", info.Name)
		cmd.Printf("  extraction: %s\n", info.ExtractionDescription)
		cmd.Printf("  retrieval:  %s\n", info.RetrievalDescription)
	}
	return nil
}

func runStrategyUse(cmd *cobra.Command, args []string) error {
	manager, err := strategy.NewManager(args[0])
	if err != nil {
		return err
	}

	path := strategyFilePath()
	if err := manager.SaveFile(path); err != nil {
		return err
	}

	cmd.Printf("Activated preset %s (written to %s)\n", args[0], path)
	return nil
}

func runStrategySet(cmd *cobra.Command, args []string) error {
	if extractionUpdates == "" && retrievalUpdates == "" {
		return fmt.Errorf("nothing to update: pass --extraction and/or --retrieval")
	}

	manager, err := newManager()
	if err != nil {
		return err
	}

	if extractionUpdates != "" {
		var updates map[string]any
		if err := json.Unmarshal([]byte(extractionUpdates), &updates); err != nil {
			return fmt.Errorf("invalid extraction updates: %w", err)
		}
		if _, err := manager.UpdateExtraction(updates); err != nil {
			return err
		}
	}

	if retrievalUpdates != "" {
		var updates map[string]any
		if err := json.Unmarshal([]byte(retrievalUpdates), &updates); err != nil {
			return fmt.Errorf("invalid retrieval updates: %w", err)
		}
		if _, err := manager.UpdateRetrieval(updates); err != nil {
			return err
		}
	}

	printStatus(cmd, manager.Status())
	return nil
}

func runStrategySave(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	if err := manager.SaveFile(args[0]); err != nil {
		return err
	}

	cmd.Printf("Saved strategies to %s\n", args[0])
	return nil
}

func runStrategyLoad(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	combined, err := manager.LoadFile(args[0])
	if err != nil {
		return err
	}

	if strategyJSON {
		out, err := json.MarshalIndent(combined, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	printStatus(cmd, manager.Status())
	return nil
}
