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

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForPodsReady blocks until at least one pod matches the selector and
// every matching pod reports the Ready condition, or until ctx is done.
// Transient list errors are retried until the deadline.
func (c *Client) WaitForPodsReady(ctx context.Context, selector string) error {
	return wait.PollUntilContextCancel(ctx, c.pollInterval, true, func(ctx context.Context) (bool, error) {
		pods, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
			LabelSelector: selector,
		})
		if err != nil {
			return false, nil
		}
		if len(pods.Items) == 0 {
			return false, nil
		}
		for _, pod := range pods.Items {
			if !isPodReady(&pod) {
				return false, nil
			}
		}
		return true, nil
	})
}

// WaitForDeploymentAvailable blocks until the named Deployment has as many
// available replicas as it wants, or until ctx is done.
func (c *Client) WaitForDeploymentAvailable(ctx context.Context, name string) error {
	return wait.PollUntilContextCancel(ctx, c.pollInterval, true, func(ctx context.Context) (bool, error) {
		dep, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		want := int32(1)
		if dep.Spec.Replicas != nil {
			want = *dep.Spec.Replicas
		}
		return dep.Status.AvailableReplicas >= want, nil
	})
}

// WaitForJobComplete blocks until the named job reports Complete. A job that
// reports Failed ends the wait immediately with an error; there is no point
// running out the clock on a job that cannot finish.
func (c *Client) WaitForJobComplete(ctx context.Context, name string) error {
	return wait.PollUntilContextCancel(ctx, c.pollInterval, true, func(ctx context.Context) (bool, error) {
		state, err := c.GetJobState(ctx, name)
		if err != nil {
			return false, nil
		}
		switch state {
		case JobComplete:
			return true, nil
		case JobFailed:
			return false, fmt.Errorf("job %s failed", name)
		default:
			return false, nil
		}
	})
}

// PodsExist reports whether any pod matches the selector. A non-nil error
// means the query itself failed and existence is unknown.
func (c *Client) PodsExist(ctx context.Context, selector string) (bool, error) {
	pods, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pods for selector %q: %w", selector, err)
	}
	return len(pods.Items) > 0, nil
}

// PodReadiness returns how many pods match the selector and how many of them
// are ready.
func (c *Client) PodReadiness(ctx context.Context, selector string) (ready, total int, err error) {
	pods, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pods for selector %q: %w", selector, err)
	}

	for _, pod := range pods.Items {
		if isPodReady(&pod) {
			ready++
		}
	}
	return ready, len(pods.Items), nil
}

func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
