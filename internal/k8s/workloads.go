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

package k8s

import (
	"context"
	"fmt"
	"os"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// ManifestObject is one decoded document from a workload manifest file.
// Only the kinds the stack's manifests actually use are supported.
type ManifestObject struct {
	Kind       string
	Name       string
	Deployment *appsv1.Deployment
	Service    *corev1.Service
	ConfigMap  *corev1.ConfigMap
	Job        *batchv1.Job
}

// DecodeManifest splits a multi-document YAML manifest and decodes each
// document into its typed object.
func DecodeManifest(data []byte) ([]ManifestObject, error) {
	var objects []ManifestObject

	for _, doc := range strings.Split(string(data), "\n---") {
		if strings.TrimSpace(doc) == "" {
			continue
		}

		var probe metav1.TypeMeta
		if err := yaml.Unmarshal([]byte(doc), &probe); err != nil {
			return nil, fmt.Errorf("failed to parse manifest document: %w", err)
		}

		obj := ManifestObject{Kind: probe.Kind}
		switch probe.Kind {
		case "Deployment":
			var d appsv1.Deployment
			if err := yaml.Unmarshal([]byte(doc), &d); err != nil {
				return nil, fmt.Errorf("failed to parse Deployment: %w", err)
			}
			obj.Deployment = &d
			obj.Name = d.Name
		case "Service":
			var s corev1.Service
			if err := yaml.Unmarshal([]byte(doc), &s); err != nil {
				return nil, fmt.Errorf("failed to parse Service: %w", err)
			}
			obj.Service = &s
			obj.Name = s.Name
		case "ConfigMap":
			var cm corev1.ConfigMap
			if err := yaml.Unmarshal([]byte(doc), &cm); err != nil {
				return nil, fmt.Errorf("failed to parse ConfigMap: %w", err)
			}
			obj.ConfigMap = &cm
			obj.Name = cm.Name
		case "Job":
			var j batchv1.Job
			if err := yaml.Unmarshal([]byte(doc), &j); err != nil {
				return nil, fmt.Errorf("failed to parse Job: %w", err)
			}
			obj.Job = &j
			obj.Name = j.Name
		case "":
			return nil, fmt.Errorf("manifest document is missing a kind")
		default:
			return nil, fmt.Errorf("unsupported manifest kind %q", probe.Kind)
		}

		objects = append(objects, obj)
	}

	if len(objects) == 0 {
		return nil, fmt.Errorf("manifest contains no documents")
	}
	return objects, nil
}

// ApplyManifestFile creates every object in the manifest file that does not
// already exist. Objects that exist are left untouched. All objects land in
// the client's namespace regardless of what the file says.
func (c *Client) ApplyManifestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	objects, err := DecodeManifest(data)
	if err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}

	for _, obj := range objects {
		if err := c.createObject(ctx, obj); err != nil {
			if apierrors.IsAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("failed to create %s %s: %w", obj.Kind, obj.Name, err)
		}
	}
	return nil
}

// DeleteManifestFile removes every object named in the manifest file. Objects
// that are already gone are not an error.
func (c *Client) DeleteManifestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	objects, err := DecodeManifest(data)
	if err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}

	for _, obj := range objects {
		if err := c.deleteObject(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete %s %s: %w", obj.Kind, obj.Name, err)
		}
	}
	return nil
}

func (c *Client) createObject(ctx context.Context, obj ManifestObject) error {
	opts := metav1.CreateOptions{}
	switch obj.Kind {
	case "Deployment":
		obj.Deployment.Namespace = c.namespace
		_, err := c.cs.AppsV1().Deployments(c.namespace).Create(ctx, obj.Deployment, opts)
		return err
	case "Service":
		obj.Service.Namespace = c.namespace
		_, err := c.cs.CoreV1().Services(c.namespace).Create(ctx, obj.Service, opts)
		return err
	case "ConfigMap":
		obj.ConfigMap.Namespace = c.namespace
		_, err := c.cs.CoreV1().ConfigMaps(c.namespace).Create(ctx, obj.ConfigMap, opts)
		return err
	case "Job":
		obj.Job.Namespace = c.namespace
		_, err := c.cs.BatchV1().Jobs(c.namespace).Create(ctx, obj.Job, opts)
		return err
	default:
		return fmt.Errorf("unsupported manifest kind %q", obj.Kind)
	}
}

func (c *Client) deleteObject(ctx context.Context, obj ManifestObject) error {
	opts := metav1.DeleteOptions{}
	switch obj.Kind {
	case "Deployment":
		return c.cs.AppsV1().Deployments(c.namespace).Delete(ctx, obj.Name, opts)
	case "Service":
		return c.cs.CoreV1().Services(c.namespace).Delete(ctx, obj.Name, opts)
	case "ConfigMap":
		return c.cs.CoreV1().ConfigMaps(c.namespace).Delete(ctx, obj.Name, opts)
	case "Job":
		return c.cs.BatchV1().Jobs(c.namespace).Delete(ctx, obj.Name, opts)
	default:
		return fmt.Errorf("unsupported manifest kind %q", obj.Kind)
	}
}

// DeploymentExists reports whether the named Deployment exists. A non-nil
// error means the query itself failed and existence is unknown.
func (c *Client) DeploymentExists(ctx context.Context, name string) (bool, error) {
	_, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to query deployment %s: %w", name, err)
}
