// Package deploy publishes query endpoints as Deno Deploy projects.
package deploy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the public Deno Deploy API root.
const DefaultBaseURL = "https://api.deno.com/v1"

// readyPrefix marks the build log line emitted once a deployment is live.
const readyPrefix = "Deployed to"

// Deployer creates serverless endpoints.
type Deployer interface {
	CreateEndpoint(ctx context.Context, assets Assets, envVars map[string]string) (*Endpoint, error)
	WaitReady(ctx context.Context, deploymentID string) error
}

// Project is a Deno Deploy project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Deployment is a Deno Deploy deployment.
type Deployment struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// Endpoint is a created deployment and its public URL.
type Endpoint struct {
	Project    Project
	Deployment Deployment
	URL        string
}

// LogEntry is one line of a deployment's build log stream.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Client is the Deno Deploy API client.
type Client struct {
	baseURL     string
	accessToken string
	orgID       string
	httpClient  *http.Client
}

var _ Deployer = (*Client)(nil)

// NewClient creates a new Deno Deploy client. The HTTP client has no overall
// timeout because log streams stay open until the build finishes; callers
// bound each call through ctx.
func NewClient(baseURL, accessToken, orgID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		orgID:       orgID,
		httpClient:  &http.Client{},
	}
}

type createProjectRequest struct {
	Name *string `json:"name"`
}

type createDeploymentRequest struct {
	EntryPointURL string            `json:"entryPointUrl"`
	Assets        Assets            `json:"assets"`
	EnvVars       map[string]string `json:"envVars"`
}

// CreateEndpoint creates a project with a generated name and deploys assets
// to it behind the CORS-wrapping entry point. The URL is known as soon as
// the deployment exists; use WaitReady to wait for it to serve.
func (c *Client) CreateEndpoint(ctx context.Context, assets Assets, envVars map[string]string) (*Endpoint, error) {
	var project Project
	if err := c.post(ctx, fmt.Sprintf("/organizations/%s/projects", c.orgID), createProjectRequest{}, &project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	all, err := withEntryPoint(assets)
	if err != nil {
		return nil, err
	}
	if envVars == nil {
		envVars = map[string]string{}
	}

	var deployment Deployment
	if err := c.post(ctx, fmt.Sprintf("/projects/%s/deployments", project.ID), createDeploymentRequest{
		EntryPointURL: "main.ts",
		Assets:        all,
		EnvVars:       envVars,
	}, &deployment); err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	return &Endpoint{
		Project:    project,
		Deployment: deployment,
		URL:        fmt.Sprintf("https://%s-%s.deno.dev", project.Name, deployment.ID),
	}, nil
}

// WaitReady follows the deployment's build logs until the ready line.
func (c *Client) WaitReady(ctx context.Context, deploymentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/deployments/"+deploymentID+"/build_logs", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deploy API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Level == "info" && strings.HasPrefix(entry.Message, readyPrefix) {
			return nil
		}
		if entry.Level == "error" {
			return fmt.Errorf("deployment failed: %s", entry.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read build logs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("build logs ended before deployment was ready")
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("deploy API error [%d]: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}
