// Courier CI/CD
//
// Package main provides reproducible builds and tests for courier, locally
// and in GitHub actions.
package main

import (
	"context"

	"dagger/courier/internal/dagger"
)

const postgresImage = "postgres:16-alpine"

// Courier is the main module for the courier CI/CD pipeline
type Courier struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".courier", "build", "tmp"]
	source *dagger.Directory,
) *Courier {
	return &Courier{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc and
// libsqlite3-dev for the cgo sqlite driver, with the project source mounted.
func (c *Courier) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// postgres starts a throwaway database for the postgres driver specs.
func (c *Courier) postgres() *dagger.Service {
	return dag.Container().
		From(postgresImage).
		WithEnvVariable("POSTGRES_USER", "courier").
		WithEnvVariable("POSTGRES_PASSWORD", "courier").
		WithEnvVariable("POSTGRES_DB", "courier").
		WithExposedPort(5432).
		AsService()
}

// Test runs the unit tests via "go test". The postgres storage specs run
// against a service container.
func (c *Courier) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithServiceBinding("db", c.postgres()).
		WithEnvVariable("COURIER_TEST_POSTGRES_DSN", "postgres://courier:courier@db:5432/courier?sslmode=disable").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
