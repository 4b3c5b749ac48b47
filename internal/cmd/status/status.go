// Package status provides the status sub-command.
package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/observer-gh/stackdeploy/internal/cli"
	"github.com/observer-gh/stackdeploy/internal/config"
	"github.com/observer-gh/stackdeploy/internal/plan"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/observer-gh/stackdeploy/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	v1 "helm.sh/helm/v4/pkg/release/v1"
)

// New creates the status sub-command for the CLI.
func New() *cobra.Command {
	statusCommand := &cobra.Command{
		Use:   "status",
		Short: "Display the status of the deployed stack",
		Long:  `Display per-component status of the deployed stack: release state, pod readiness, revision and age.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output format: %w", err)
			}
			return cli.ValidateOutputFormat(outputFormat)
		},
		RunE: runStatus,
		Example: `
# Display stack status as a table
stackdeploy status

# Display stack status as JSON
stackdeploy status --output json`,
	}

	statusCommand.Flags().StringP("output", "o", cli.OutputFormatTable, "Output format: table, json, yaml")

	return statusCommand
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	outputFormat, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output format: %w", err)
	}

	rt := runtime.FromRuntime(ctx)
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	cfg, err := rt.Config()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	helmClient, err := cli.GetHelmClient(ctx)
	if err != nil {
		return err
	}
	kube, err := cli.GetStackClient(ctx)
	if err != nil {
		return err
	}

	components, err := collectComponents(ctx, cfg, helmClient, kube)
	if err != nil {
		return err
	}

	switch outputFormat {
	case cli.OutputFormatJSON:
		out, err := json.MarshalIndent(components, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize json: %w", err)
		}
		return printColorized(append(out, '\n'), "json")
	case cli.OutputFormatYAML:
		out, err := yaml.Marshal(components)
		if err != nil {
			return fmt.Errorf("failed to serialize yaml: %w", err)
		}
		return printColorized(out, "yaml")
	default:
		printTable(components)
		return nil
	}
}

// collectComponents gathers the per-component view of the stack in
// deployment order.
func collectComponents(ctx context.Context, cfg *config.Config, helmClient runtime.HelmClient, kube runtime.StackClient) ([]cli.ComponentViewModel, error) {
	releases, err := helmClient.ListReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	byName := make(map[string]*v1.Release, len(releases))
	for _, rel := range releases {
		byName[rel.Name] = rel
	}

	var components []cli.ComponentViewModel

	releaseComponents := []struct {
		component string
		release   config.Release
	}{
		{plan.StepRedis, cfg.Releases.Redis},
		{plan.StepKafka, cfg.Releases.Kafka},
		{plan.StepMariaDB, cfg.Releases.MariaDB},
	}
	if cfg.Telemetry {
		releaseComponents = append(releaseComponents, struct {
			component string
			release   config.Release
		}{plan.StepOtelCollector, cfg.Releases.Otel})
	}

	for _, rc := range releaseComponents {
		vm := releaseViewModel(ctx, rc.component, rc.release, byName[rc.release.Name], kube)
		vm.Namespace = kube.Namespace()
		components = append(components, vm)
	}

	components = append(components, jobViewModel(ctx, cfg, kube))

	for _, wc := range []struct {
		component string
		workload  config.Workload
	}{
		{plan.StepBackend, cfg.Workloads.Backend},
		{plan.StepFrontend, cfg.Workloads.Frontend},
	} {
		components = append(components, workloadViewModel(ctx, wc.component, wc.workload, kube))
	}

	return components, nil
}

// releaseViewModel describes one Helm-managed component. When the release is
// absent but pods match the selector, the component is reported from the
// pods alone; that is the external-infra case.
func releaseViewModel(ctx context.Context, component string, rel config.Release, release *v1.Release, kube runtime.StackClient) cli.ComponentViewModel {
	ready, total, err := kube.PodReadiness(ctx, rel.Selector)
	pods := "-"
	if err == nil {
		pods = cli.FormatReadiness(ready, total)
	}

	if release == nil {
		status := "absent"
		if total > 0 {
			status = "external"
		}
		return cli.ComponentViewModel{
			Component: component,
			Kind:      cli.KindRelease,
			Status:    status,
			Pods:      pods,
			Namespace: kube.Namespace(),
		}
	}

	vm := cli.ReleaseToViewModel(component, release)
	vm.Pods = pods
	return vm
}

// jobViewModel describes the database init job.
func jobViewModel(ctx context.Context, cfg *config.Config, kube runtime.StackClient) cli.ComponentViewModel {
	vm := cli.ComponentViewModel{
		Component: plan.StepInitJob,
		Kind:      cli.KindJob,
		Status:    "unknown",
		Pods:      "-",
		Namespace: kube.Namespace(),
	}

	state, err := kube.GetJobState(ctx, cfg.Init.JobName)
	if err == nil {
		vm.Status = state.String()
	}
	return vm
}

// workloadViewModel describes a manifest-applied workload.
func workloadViewModel(ctx context.Context, component string, wl config.Workload, kube runtime.StackClient) cli.ComponentViewModel {
	vm := cli.ComponentViewModel{
		Component: component,
		Kind:      cli.KindWorkload,
		Status:    "unknown",
		Pods:      "-",
		Namespace: kube.Namespace(),
	}

	exists, err := kube.DeploymentExists(ctx, wl.Deployment)
	if err != nil {
		return vm
	}
	if !exists {
		vm.Status = "absent"
		return vm
	}

	ready, total, err := kube.PodReadiness(ctx, wl.Selector)
	if err != nil {
		vm.Status = "deployed"
		return vm
	}

	vm.Pods = cli.FormatReadiness(ready, total)
	switch {
	case total > 0 && ready == total:
		vm.Status = "available"
	case total > 0:
		vm.Status = "degraded"
	default:
		vm.Status = "absent"
	}
	return vm
}

// printColorized writes serialized output with terminal syntax highlighting
// when possible.
func printColorized(data []byte, lexer string) error {
	colorized, err := cli.ColorizeWithChroma(data, lexer)
	if err != nil {
		fmt.Print(string(data))
		return nil
	}
	fmt.Print(colorized)
	return nil
}

// printTable renders the components as a table.
func printTable(components []cli.ComponentViewModel) {
	table := ui.NewTable().SetColumns(cli.GetTableColumns())

	rows := make([]ui.Row, len(components))
	for i, vm := range components {
		row := ui.Row{
			"component": vm.Component,
			"kind":      vm.Kind,
			"status":    fmt.Sprintf("● %s", vm.Status),
			"pods":      vm.Pods,
			"age":       vm.Age,
			"namespace": vm.Namespace,
		}
		if vm.Revision > 0 {
			row["revision"] = fmt.Sprintf("%d", vm.Revision)
		}
		rows[i] = row
	}

	table.SetRows(rows).Print()
}
