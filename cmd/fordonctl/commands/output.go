package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// render writes the value to the command output in the requested format.
func render(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
