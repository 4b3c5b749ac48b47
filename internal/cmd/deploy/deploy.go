// Package deploy provides the deploy sub-command.
package deploy

import (
	"context"
	"fmt"
	"os"

	"github.com/observer-gh/stackdeploy/internal/cli"
	"github.com/observer-gh/stackdeploy/internal/logging"
	"github.com/observer-gh/stackdeploy/internal/plan"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/observer-gh/stackdeploy/internal/sequencer"
	"github.com/observer-gh/stackdeploy/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// New creates the deploy sub-command for the CLI.
func New() *cobra.Command {
	deployCommand := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the stack to a Kubernetes cluster",
		Long: `Deploy the stack to a Kubernetes cluster as an ordered sequence of
idempotent steps. Steps whose resources already exist are skipped or
upgraded according to their policy, so re-running after a partial
deployment finishes the remaining work.`,
		Example: `
# Deploy using the default config (./stackdeploy.yaml)
stackdeploy deploy

# Deploy with an explicit config path
stackdeploy deploy -f ./path/to/stackdeploy.yaml

# Deploy against infrastructure operated elsewhere (Redis and Kafka
# must already be running; they are gated on, not installed)
stackdeploy deploy --external-infra

# Skip the kube-context confirmation prompt
stackdeploy deploy --yes`,
		Args: cobra.NoArgs,
		RunE: runDeploy,
	}

	deployCommand.Flags().Bool("external-infra", false, "Gate on externally operated Redis and Kafka instead of installing them")
	deployCommand.Flags().BoolP("yes", "y", false, "Skip the kube-context confirmation prompt")

	return deployCommand
}

func runDeploy(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger(cmd)
	ctx := cmd.Context()

	rt := runtime.FromRuntime(ctx)
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	cfg, err := rt.Config()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	externalInfra, err := cmd.Flags().GetBool("external-infra")
	if err != nil {
		return fmt.Errorf("failed to get external-infra flag: %w", err)
	}
	if externalInfra {
		cfg.ExternalInfra = true
	}

	assumeYes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	if err := confirmContext(cmd, rt, cfg.Context, assumeYes); err != nil {
		return err
	}

	// Client construction is the tooling pre-flight: a cluster that cannot
	// be reached or a kubeconfig that cannot be resolved surfaces here,
	// before any step runs.
	helmClient, err := cli.GetHelmClient(ctx)
	if err != nil {
		return &sequencer.AbortError{Reason: sequencer.ReasonToolingMissing, Err: err}
	}
	kube, err := cli.GetStackClient(ctx)
	if err != nil {
		return &sequencer.AbortError{Reason: sequencer.ReasonToolingMissing, Err: err}
	}

	steps, err := plan.Build(cfg, helmClient, kube)
	if err != nil {
		return fmt.Errorf("failed to build deployment plan: %w", err)
	}

	variant := "full"
	if cfg.ExternalInfra {
		variant = "external-infra"
	}
	logger.Info("Starting deployment", "namespace", cfg.Namespace, "variant", variant, "steps", len(steps))

	seq := sequencer.New(steps, sequencer.WithLogger(logger))
	outcomes, runErr := seq.Run(ctx)

	for _, outcome := range outcomes {
		logger.Info("Step outcome", "step", outcome.Step, "result", string(outcome.Result))
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("Deployment completed successfully", "namespace", cfg.Namespace)
	return nil
}

// confirmContext checks the active kubeconfig context against the one the
// config expects, then asks for confirmation before touching the cluster.
// The prompt is skipped with --yes or when stdin is not a terminal;
// declining aborts the run as a user cancellation.
func confirmContext(cmd *cobra.Command, rt *runtime.Runtime, wantContext string, assumeYes bool) error {
	logger := logging.GetLogger(cmd)

	kubeContext, err := rt.CurrentContext()
	if err != nil {
		return &sequencer.AbortError{Reason: sequencer.ReasonToolingMissing, Err: err}
	}

	if wantContext != "" && kubeContext != wantContext {
		return fmt.Errorf("active kube-context is %q but the config expects %q", kubeContext, wantContext)
	}

	if assumeYes || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	if kubeContext == "" {
		// In-cluster or a kubeconfig without a current context; nothing
		// meaningful to confirm.
		return nil
	}

	var confirmed bool
	form := ui.CreateConfirmForm(
		fmt.Sprintf("Deploy to kube-context '%s'?", kubeContext),
		"The stack will be installed into this cluster.",
		"Yes, deploy",
		"No, cancel",
		&confirmed,
	)

	if err := ui.CollectWithForm(form, "failed to get confirmation"); err != nil {
		return err
	}

	if !confirmed {
		logger.Info("Deployment cancelled by user", "context", kubeContext)
		return &sequencer.AbortError{
			Reason: sequencer.ReasonUserCancelled,
			Err:    context.Canceled,
		}
	}

	return nil
}
