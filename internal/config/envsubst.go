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

package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/fluxcd/pkg/envsubst"
	"github.com/joho/godotenv"
)

const (
	// SD_VAR_ prefix marks environment variables meant for config
	// substitution, keeping them apart from variables meant for containers.
	variablePrefix = "SD_VAR_"

	// defaultEnvFile is picked up from the working directory when present.
	defaultEnvFile = ".env"
)

// parseEnvFile parses a .env file. A missing file is not an error.
func parseEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s file: %w", path, err)
	}

	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s file: %w", path, err)
	}

	return vars, nil
}

func parseOSVariables() (map[string]string, error) {
	env := os.Environ()
	buf := bytes.NewBufferString(strings.Join(env, "\n"))
	buf.WriteString("\n")

	vars, err := godotenv.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OS environment variables: %w", err)
	}

	return vars, nil
}

// filterVariables keeps only SD_VAR_-prefixed variables, with the prefix
// stripped from the keys.
func filterVariables(vars map[string]string) map[string]string {
	out := make(map[string]string)
	for key, value := range vars {
		if strings.HasPrefix(key, variablePrefix) {
			out[strings.TrimPrefix(key, variablePrefix)] = value
		}
	}
	return out
}

// substituteVariables substitutes ${VAR} references in the raw config data.
// Precedence, lowest to highest: the config's own vars block, the .env file,
// the OS environment.
func substituteVariables(data []byte, configVars map[string]string) ([]byte, error) {
	variables := make(map[string]string)

	if err := mergo.Merge(&variables, configVars); err != nil {
		return nil, fmt.Errorf("failed to merge config vars: %w", err)
	}

	fileVars, err := parseEnvFile(defaultEnvFile)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&variables, filterVariables(fileVars), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge env file variables: %w", err)
	}

	osVars, err := parseOSVariables()
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&variables, filterVariables(osVars), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge OS environment variables: %w", err)
	}

	content, err := envsubst.Eval(string(data), func(s string) (string, bool) {
		v, ok := variables[s]
		return v, ok
	})
	if err != nil {
		return nil, fmt.Errorf("failed to substitute variables: %w", err)
	}

	return []byte(content), nil
}
