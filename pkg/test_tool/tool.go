package testtool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"secure_messaging_service/pkg/database"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer 通用函式來啟動測試容器，回傳 host 與第一個 exposed port 的對外 port
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, string, error) {
	if len(req.ExposedPorts) == 0 {
		return nil, "", "", fmt.Errorf("container %s exposes no port", req.Image)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	if err != nil {
		return nil, "", "", err
	}

	port, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, port.Port(), nil
}

// StartPostgres start a throwaway postgres and return its gorm DSN
func StartPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, host, port, err := SetupContainer(ctx, testcontainers.ContainerRequest{
		Image: "postgres:16-alpine",
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, "", err
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, "", err
	}
	return container, database.PostgresDSN(host, p, "test", "test", "testdb"), nil
}
