// Package validate provides the validate sub-command.
package validate

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/observer-gh/stackdeploy/internal/cli"
	"github.com/observer-gh/stackdeploy/internal/logging"
	"github.com/observer-gh/stackdeploy/internal/plan"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"
)

// New creates the validate sub-command for the CLI.
func New() *cobra.Command {
	validateCommand := &cobra.Command{
		Use:   "validate",
		Short: "Validate the stack config",
		Long: `Validate the stack config file: schema, variable substitution, image
references, label selectors and timeouts. The cluster is not contacted.`,
		Example: `
# Validate the default config (./stackdeploy.yaml)
stackdeploy validate

# Validate an explicit config path and show the resolved config
stackdeploy validate -f ./path/to/stackdeploy.yaml --show`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}

	validateCommand.Flags().Bool("show", false, "Print the resolved config after validation")

	return validateCommand
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger(cmd)

	rt := runtime.FromRuntime(cmd.Context())
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	cfg, err := rt.Config()
	if err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}

	variant := "full"
	if cfg.ExternalInfra {
		variant = "external-infra"
	}
	logger.Info("Config is valid", "namespace", cfg.Namespace, "variant", variant, "telemetry", cfg.Telemetry)

	// Build captures clients in closures without calling them, so nil
	// clients are fine for showing the step order.
	steps, err := plan.Build(cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}
	fmt.Println("Deployment order:")
	stepColor := color.New(color.FgCyan)
	for _, line := range plan.Describe(steps) {
		fmt.Printf("  %s\n", stepColor.Sprint(line))
	}

	show, err := cmd.Flags().GetBool("show")
	if err != nil {
		return fmt.Errorf("failed to get show flag: %w", err)
	}
	if !show {
		return nil
	}

	out, err := sigsyaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	colorized, err := cli.ColorizeWithChroma(out, "yaml")
	if err != nil {
		fmt.Print(string(out))
		return nil
	}
	fmt.Print(colorized)
	return nil
}
