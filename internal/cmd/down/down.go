// Package down provides the down sub-command.
package down

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/observer-gh/stackdeploy/internal/cli"
	"github.com/observer-gh/stackdeploy/internal/config"
	"github.com/observer-gh/stackdeploy/internal/logging"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/observer-gh/stackdeploy/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// New creates the down sub-command for the CLI.
func New() *cobra.Command {
	downCommand := &cobra.Command{
		Use:     "down",
		Aliases: []string{"teardown", "uninstall"},
		Short:   "Tear the stack down",
		Long: `Tear the stack down in reverse deployment order: workloads first,
then the init job and its config map, then the Helm releases. Externally
operated Redis and Kafka are never touched. The namespace itself is kept.`,
		Args: cobra.NoArgs,
		RunE: runDown,
	}

	downCommand.Flags().Bool("external-infra", false, "Leave Redis and Kafka alone (they are operated elsewhere)")
	downCommand.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return downCommand
}

func runDown(cmd *cobra.Command, args []string) error {
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

	externalInfra, _ := cmd.Flags().GetBool("external-infra")
	if externalInfra {
		cfg.ExternalInfra = true
	}

	assumeYes, _ := cmd.Flags().GetBool("yes")
	if promptRequired(assumeYes) {
		var confirmed bool
		form := ui.CreateConfirmForm(
			fmt.Sprintf("Tear down the stack in namespace '%s'?", cfg.Namespace),
			"This removes the workloads, the init job and the managed Helm releases. Persistent volumes may be deleted with them.",
			"Yes, tear it down",
			"No, cancel",
			&confirmed,
		)
		if err := ui.CollectWithForm(form, "failed to get confirmation"); err != nil {
			return err
		}
		if !confirmed {
			logger.Info("Teardown cancelled by user")
			return nil
		}
	}

	helmClient, err := cli.GetHelmClient(ctx)
	if err != nil {
		return err
	}
	kube, err := cli.GetStackClient(ctx)
	if err != nil {
		return err
	}

	err = spinner.New().
		Title(fmt.Sprintf("Tearing down stack in namespace '%s'...", cfg.Namespace)).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			return teardown(ctx, logger, cfg, helmClient, kube)
		}).
		Run()
	if err != nil {
		return fmt.Errorf("teardown failed: %w", err)
	}

	logger.Info("Stack torn down", "namespace", cfg.Namespace)
	return nil
}

// promptRequired reports whether the teardown confirmation should be shown.
// The prompt is skipped with --yes and on non-interactive stdin so scripted
// runs do not hang on the form.
func promptRequired(assumeYes bool) bool {
	return !assumeYes && term.IsTerminal(int(os.Stdin.Fd()))
}

// teardown removes stack resources in reverse deployment order. Absent
// resources are tolerated so a partial teardown can be re-run.
func teardown(ctx context.Context, logger *log.Logger, cfg *config.Config, helmClient runtime.HelmClient, kube runtime.StackClient) error {
	phases := ui.NewProgressTracker([]string{"workloads", "init job", "releases"})

	logger.Info("Removing workloads", "progress", phases.GetCurrentStep())
	if err := kube.DeleteManifestFile(ctx, cfg.Workloads.Frontend.Manifest); err != nil {
		return fmt.Errorf("failed to remove frontend: %w", err)
	}
	if err := kube.DeleteManifestFile(ctx, cfg.Workloads.Backend.Manifest); err != nil {
		return fmt.Errorf("failed to remove backend: %w", err)
	}
	phases.NextStep()

	logger.Info("Removing init job and config map", "progress", phases.GetCurrentStep())
	if err := kube.DeleteJob(ctx, cfg.Init.JobName); err != nil {
		return fmt.Errorf("failed to remove init job: %w", err)
	}
	if err := kube.DeleteConfigMap(ctx, cfg.Init.ConfigMap); err != nil {
		return fmt.Errorf("failed to remove init config map: %w", err)
	}
	phases.NextStep()

	releases := []config.Release{cfg.Releases.MariaDB}
	if cfg.Telemetry {
		releases = append([]config.Release{cfg.Releases.Otel}, releases...)
	}
	if !cfg.ExternalInfra {
		releases = append(releases, cfg.Releases.Kafka, cfg.Releases.Redis)
	}

	for _, rel := range releases {
		logger.Info("Uninstalling release", "release", rel.Name, "progress", phases.GetCurrentStep())
		if err := helmClient.UninstallRelease(rel.Name); err != nil {
			return fmt.Errorf("failed to uninstall release %s: %w", rel.Name, err)
		}
	}

	return nil
}
