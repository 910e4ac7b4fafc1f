package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostEnv overrides the address used for datasources on the Docker
// host. Linux engines without host.docker.internal set it to the bridge
// gateway (usually 172.17.0.1).
const DockerHostEnv = "DATASOURCE_DOCKER_HOST"

const defaultDockerHost = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker
// container, detected by /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback datasource host to the Docker host
// when running in a container. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveDatasourceHost(host, IsRunningInDocker(), os.Getenv(DockerHostEnv))
}

func resolveDatasourceHost(host string, inDocker bool, override string) string {
	if !inDocker || !isLoopback(host) {
		return host
	}
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return defaultDockerHost
}

func isLoopback(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1", "[::1]", "0.0.0.0":
		return true
	}
	return false
}
