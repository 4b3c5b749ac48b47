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
	_ "embed"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/stackdeploy.json
var schemaBytes []byte

const schemaID = "stackdeploy/v1/stackdeploy.json"

// validateAgainstSchema validates the decoded config document against the
// embedded JSON schema. This is a strict validation: unknown fields are not
// allowed.
func validateAgainstSchema(obj map[string]any) error {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	jsonSchema, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return fmt.Errorf("invalid embedded config schema: %w", err)
	}

	if err := compiler.AddResource(schemaID, jsonSchema); err != nil {
		return fmt.Errorf("failed to load config schema: %w", err)
	}

	compiled, err := compiler.Compile(schemaID)
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	if err := compiled.Validate(obj); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// validateAPIVersion checks the config's apiVersion field for presence, type,
// and validity. Returns the version string if valid.
func validateAPIVersion(obj map[string]any) (string, error) {
	apiVersionVal, ok := obj["apiVersion"]
	if !ok {
		return "", fmt.Errorf("config is missing 'apiVersion' field")
	}

	apiVersionStr, ok := apiVersionVal.(string)
	if !ok || apiVersionStr == "" {
		return "", fmt.Errorf("'apiVersion' field must be a non-empty string")
	}

	if apiVersionStr != SupportedAPIVersion {
		return "", fmt.Errorf("unsupported config version: %s (expected %s)", apiVersionStr, SupportedAPIVersion)
	}

	return apiVersionStr, nil
}
