// Copyright 2025 The Stackdeploy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/observer-gh/stackdeploy/internal/runtime"
	"github.com/observer-gh/stackdeploy/internal/ui"
	v1 "helm.sh/helm/v4/pkg/release/v1"
)

// ComponentViewModel is the curated per-component output structure for
// json/yaml, matching what table mode displays.
type ComponentViewModel struct {
	Component string `json:"component" yaml:"component"`
	Kind      string `json:"kind" yaml:"kind"`
	Status    string `json:"status" yaml:"status"`
	Pods      string `json:"pods" yaml:"pods"`
	Revision  int    `json:"revision,omitempty" yaml:"revision,omitempty"`
	Age       string `json:"age,omitempty" yaml:"age,omitempty"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Component kinds shown in the status output.
const (
	KindRelease  = "release"
	KindWorkload = "workload"
	KindJob      = "job"
)

// ReleaseToViewModel converts a Helm release to a component view model.
func ReleaseToViewModel(component string, rel *v1.Release) ComponentViewModel {
	vm := ComponentViewModel{
		Component: component,
		Kind:      KindRelease,
		Namespace: rel.Namespace,
		Revision:  int(rel.Version),
		Status:    "unknown",
	}

	if rel.Info != nil {
		vm.Status = rel.Info.Status.String()
		if age := FormatAge(rel.Info.LastDeployed.Time); age != "-" {
			vm.Age = age
		}
	}

	return vm
}

// FormatReadiness renders a ready/total pod count as the conventional
// "2/3" cell.
func FormatReadiness(ready, total int) string {
	return fmt.Sprintf("%d/%d", ready, total)
}

// FormatAge renders a creation timestamp as a humanized age, or "-" for the
// zero time.
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// GetTableColumns returns the status table column configuration.
func GetTableColumns() []ui.Column {
	return []ui.Column{
		{
			Title:    "COMPONENT",
			Key:      "component",
			MinWidth: 10,
			MaxWidth: 20,
			StyleFunc: func(value string) lipgloss.Style {
				return lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorBrightWhite))
			},
			Condition: true,
		},
		{
			Title:    "KIND",
			Key:      "kind",
			MinWidth: 8,
			MaxWidth: 10,
			StyleFunc: func(value string) lipgloss.Style {
				return lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
			},
			Condition: true,
		},
		{
			Title:    "STATUS",
			Key:      "status",
			MinWidth: 10,
			MaxWidth: 16,
			StyleFunc: func(value string) lipgloss.Style {
				return ui.GetStatusStyle(value)
			},
			Condition: true,
		},
		{
			Title:    "PODS",
			Key:      "pods",
			MinWidth: 6,
			MaxWidth: 10,
			StyleFunc: func(value string) lipgloss.Style {
				return ui.GetReadinessStyle(value)
			},
			Condition: true,
		},
		{
			Title: "REV",
			Key:   "revision",
			Width: 4,
			StyleFunc: func(value string) lipgloss.Style {
				return lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
			},
			Condition: true,
		},
		{
			Title:    "AGE",
			Key:      "age",
			MinWidth: 8,
			MaxWidth: 20,
			StyleFunc: func(value string) lipgloss.Style {
				return lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
			},
			Condition: true,
		},
		{
			Title:    "NAMESPACE",
			Key:      "namespace",
			MinWidth: 10,
			MaxWidth: 15,
			StyleFunc: func(value string) lipgloss.Style {
				return lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
			},
			Condition: true,
		},
	}
}

// ColorizeWithChroma applies terminal syntax highlighting to serialized
// output. The lexer name is "json" or "yaml"; non-terminal output passes
// through unchanged.
func ColorizeWithChroma(data []byte, lexerName string) (string, error) {
	if !ui.IsTerminal() {
		return string(data), nil
	}

	lexer := lexers.Get(lexerName)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}

	formatter := formatters.Get("terminal")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to tokenize %s: %w", lexerName, err)
	}

	var result strings.Builder
	err = formatter.Format(&result, style, iterator)
	if err != nil {
		return "", fmt.Errorf("failed to format %s: %w", lexerName, err)
	}

	return result.String(), nil
}

// ValidateOutputFormat checks a --output flag value against the supported
// formats.
func ValidateOutputFormat(format string) error {
	for _, f := range OutputFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %q, must be one of: %s", format, strings.Join(OutputFormats, ", "))
}

// GetHelmClient initializes and returns a Helm client from the runtime context.
// This is a common utility function used across multiple commands.
func GetHelmClient(ctx context.Context) (runtime.HelmClient, error) {
	rt := runtime.FromRuntime(ctx)
	if rt == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}

	helmClient, err := rt.Helm()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize helm client: %w", err)
	}

	return helmClient, nil
}

// GetStackClient initializes and returns a Kubernetes client from the runtime
// context.
func GetStackClient(ctx context.Context) (runtime.StackClient, error) {
	rt := runtime.FromRuntime(ctx)
	if rt == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}

	kube, err := rt.Stack()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kubernetes client: %w", err)
	}

	return kube, nil
}
