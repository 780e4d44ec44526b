package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// TestLabel marks containers started by tests. Its value is the test name.
const TestLabel = "runsheets-test"

// requireDocker skips the test when no Docker daemon answers and otherwise
// registers removal of every container the test labels.
func requireDocker(t *testing.T) {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("docker is not running: %v", err)
	}

	// Containers left behind by an interrupted run of the same test go first.
	removeLabeled(t, cli)
	t.Cleanup(func() {
		removeLabeled(t, cli)
		cli.Close()
	})
}

func removeLabeled(t *testing.T, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := filters.NewArgs(filters.Arg("label", TestLabel+"="+t.Name()))
	found, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		t.Logf("list test containers: %v", err)
		return
	}

	for _, c := range found {
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			t.Logf("remove container %s: %v", c.ID[:12], err)
			continue
		}
		t.Logf("removed test container %s", strings.Join(c.Names, ","))
	}
}

// containerName builds runsheets-test-<role>-<test>-<random>.
func containerName(t *testing.T, role string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s-%s-%s-%s", TestLabel, role, dockerSafe(t.Name()), hex.EncodeToString(b))
}

func dockerSafe(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '/' || r == '_' || r == '-':
			sb.WriteByte('-')
		}
		if sb.Len() >= 30 {
			break
		}
	}
	return sb.String()
}
