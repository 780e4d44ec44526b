// Package relay runs a local Mailpit SMTP relay in Docker so run sheets can
// be dispatched end to end without a real mail provider.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

const (
	DefaultImage         = "axllent/mailpit:latest"
	DefaultContainerName = "runsheets-relay"
	DefaultSMTPPort      = "1025"
	DefaultUIPort        = "8025"

	// Label marks every container this package creates.
	Label = "runsheets-relay"

	smtpContainerPort nat.Port = "1025/tcp"
	uiContainerPort   nat.Port = "8025/tcp"
	readyTimeout               = 30 * time.Second
	stopTimeoutSecs            = 10
)

// ErrNotFound is returned by operations that need an existing container.
var ErrNotFound = errors.New("relay container not found")

// ContainerStatus is the relay container's lifecycle state.
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusNotFound ContainerStatus = "not_found"
	StatusStarting ContainerStatus = "starting"
)

// Info describes the relay for the status command.
type Info struct {
	Name     string          `json:"name" yaml:"name"`
	Image    string          `json:"image" yaml:"image"`
	Status   ContainerStatus `json:"status" yaml:"status"`
	ID       string          `json:"id,omitempty" yaml:"id,omitempty"`
	SMTP     string          `json:"smtp" yaml:"smtp"`
	UI       string          `json:"ui" yaml:"ui"`
	Messages *int            `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// Config holds configuration for the relay manager.
type Config struct {
	ContainerName string
	Image         string
	SMTPPort      string
	UIPort        string
	// Labels are added to the container next to Label.
	Labels map[string]string
}

func (c Config) withDefaults() Config {
	if c.ContainerName == "" {
		c.ContainerName = DefaultContainerName
	}
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.SMTPPort == "" {
		c.SMTPPort = DefaultSMTPPort
	}
	if c.UIPort == "" {
		c.UIPort = DefaultUIPort
	}
	return c
}

// Manager owns the relay container's lifecycle.
type Manager struct {
	cli    *client.Client
	cfg    Config
	labels map[string]string
}

// New creates a relay manager with a Docker client from the environment.
func New(cfg Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	cfg = cfg.withDefaults()
	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &Manager{cli: cli, cfg: cfg, labels: labels}, nil
}

// Close closes the Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// SMTPHost returns the host the relay's SMTP listener is bound to.
func (m *Manager) SMTPHost() string {
	return "localhost"
}

// SMTPPort returns the host port of the relay's SMTP listener.
func (m *Manager) SMTPPort() string {
	return m.cfg.SMTPPort
}

// UIURL returns the base URL of the relay's web UI and REST API.
func (m *Manager) UIURL() string {
	return "http://localhost:" + m.cfg.UIPort
}

// Inbox returns a client for the messages the relay has captured.
func (m *Manager) Inbox() *Inbox {
	return NewInbox(m.UIURL())
}

// Start creates the container if needed, starts it, and waits for the
// relay to report ready. Starting a running relay only waits.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	status, id, err := m.lookup(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
	case StatusStopped, StatusStarting:
		if err := m.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
	case StatusNotFound:
		if err := m.create(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("container in unexpected state: %s", status)
	}

	return m.WaitReady(ctx, readyTimeout)
}

// Stop stops the container. A missing container is not an error.
func (m *Manager) Stop(ctx context.Context) error {
	status, id, err := m.lookup(ctx)
	if err != nil || status == StatusNotFound {
		return err
	}

	timeout := stopTimeoutSecs
	if err := m.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove force-removes the container and the messages it captured. A
// missing container is not an error.
func (m *Manager) Remove(ctx context.Context) error {
	status, id, err := m.lookup(ctx)
	if err != nil || status == StatusNotFound {
		return err
	}

	if err := m.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Status returns the container's lifecycle state.
func (m *Manager) Status(ctx context.Context) (ContainerStatus, error) {
	status, _, err := m.lookup(ctx)
	return status, err
}

// Describe returns the relay's state and addresses. The captured message
// count is filled in only when the relay is running and answers.
func (m *Manager) Describe(ctx context.Context) (*Info, error) {
	status, id, err := m.lookup(ctx)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Name:   m.cfg.ContainerName,
		Image:  m.cfg.Image,
		Status: status,
		SMTP:   m.SMTPHost() + ":" + m.SMTPPort(),
		UI:     m.UIURL(),
	}
	if len(id) > 12 {
		info.ID = id[:12]
	}
	if status == StatusRunning {
		if list, err := m.Inbox().Messages(ctx); err == nil {
			info.Messages = &list.Total
		}
	}
	return info, nil
}

// Logs returns the last tail lines of the container's combined output.
func (m *Manager) Logs(ctx context.Context, tail string) (string, error) {
	status, id, err := m.lookup(ctx)
	if err != nil {
		return "", err
	}
	if status == StatusNotFound {
		return "", ErrNotFound
	}

	rc, err := m.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	// Without a TTY the stream is multiplexed with 8-byte frame headers.
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return out.String(), nil
}

// WaitReady polls the relay's readiness endpoint once a second until it
// answers 200 or timeout passes.
func (m *Manager) WaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpClient := &http.Client{Timeout: 2 * time.Second}
	url := m.UIURL() + "/readyz"

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("relay not ready: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("relay at %s not ready after %s: %w", m.UIURL(), timeout, err)
	}
	return nil
}

func (m *Manager) create(ctx context.Context) error {
	if err := m.pullIfMissing(ctx); err != nil {
		return err
	}

	cfg := &container.Config{
		Image: m.cfg.Image,
		Env: []string{
			// Accept any credentials over plain SMTP so the mailer's
			// authenticated path is exercised locally.
			"MP_SMTP_AUTH_ACCEPT_ANY=1",
			"MP_SMTP_AUTH_ALLOW_INSECURE=1",
		},
		Labels: m.labels,
		ExposedPorts: nat.PortSet{
			smtpContainerPort: struct{}{},
			uiContainerPort:   struct{}{},
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			smtpContainerPort: {{HostIP: "127.0.0.1", HostPort: m.cfg.SMTPPort}},
			uiContainerPort:   {{HostIP: "127.0.0.1", HostPort: m.cfg.UIPort}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// lookup finds the container by exact name. Docker's name filter matches
// substrings, so the pattern is anchored.
func (m *Manager) lookup(ctx context.Context) (ContainerStatus, string, error) {
	args := filters.NewArgs(filters.Arg("name", "^/"+m.cfg.ContainerName+"$"))
	found, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(found) == 0 {
		return StatusNotFound, "", nil
	}
	return containerState(found[0].State), found[0].ID, nil
}

func containerState(state string) ContainerStatus {
	switch state {
	case "running":
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	default:
		return ContainerStatus(state)
	}
}

func (m *Manager) pullIfMissing(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.cfg.Image); err == nil {
		return nil
	}

	rc, err := m.cli.ImagePull(ctx, m.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", m.cfg.Image, err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	return err
}
