package testutil

import (
	"net"
	"strconv"
	"testing"
)

// RelayTestConfig holds relay container settings without importing the relay
// package.
type RelayTestConfig struct {
	ContainerName string
	SMTPPort      string
	UIPort        string
	Labels        map[string]string
}

// NewRelayConfig reserves free ports and a unique container name for a relay
// started by a test. The test is skipped when Docker is not available, and
// the container is removed when it finishes.
func NewRelayConfig(t *testing.T) RelayTestConfig {
	t.Helper()

	requireDocker(t)

	smtpPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for SMTP: %v", err)
	}
	uiPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for relay UI: %v", err)
	}

	return RelayTestConfig{
		ContainerName: containerName(t, "relay"),
		SMTPPort:      smtpPort,
		UIPort:        uiPort,
		Labels:        map[string]string{TestLabel: t.Name()},
	}
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return strconv.Itoa(listener.Addr().(*net.TCPAddr).Port), nil
}
