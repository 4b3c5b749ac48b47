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

package helm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"
	"sigs.k8s.io/yaml"
)

// valuesData is the context available to values file templates.
type valuesData struct {
	Vars map[string]string
}

// RenderValues reads a values file, renders it as a Go template with Sprig
// functions and the given vars under .Vars, and parses the result. An empty
// path yields empty values.
func RenderValues(path string, vars map[string]string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file %s: %w", path, err)
	}

	tpl, err := template.New(filepath.Base(path)).Funcs(sprig.TxtFuncMap()).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse values template %s: %w", path, err)
	}

	var rendered bytes.Buffer
	if err := tpl.Execute(&rendered, valuesData{Vars: vars}); err != nil {
		return nil, fmt.Errorf("failed to render values template %s: %w", path, err)
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(rendered.Bytes(), &values); err != nil {
		return nil, fmt.Errorf("failed to parse rendered values %s: %w", path, err)
	}

	return values, nil
}
