package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/courier/internal/dagger"
)

// Build and return a directory of courier binaries, one per linux architecture.
//
// The sqlite driver needs cgo, so each architecture is built natively in an
// emulated container rather than cross compiled.
func (c *Courier) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	for _, goarch := range goarches {
		platform := dagger.Platform("linux/" + goarch)
		path := fmt.Sprintf("linux/%s/", goarch)

		build := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+goarch)).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+goarch)).
			WithDirectory("/src", c.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/courier"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (c *Courier) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/courier/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/courier/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/courier/pkg/utils.Buildtime=%s'", buildtime),
	}

	return c.Build(ctx, strings.Join(ldflags, " "))
}

// Image packages the amd64 release binary into a slim runtime image that
// serves the API on port 8000.
func (c *Courier) Image(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Container {
	bin := c.BuildRelease(ctx, version, commit).File("linux/amd64/courier")

	return dag.Container().
		From("debian:bookworm-slim").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "libsqlite3-0", "ca-certificates"}).
		WithFile("/usr/local/bin/courier", bin).
		WithWorkdir("/data").
		WithExec([]string{"courier", "init"}).
		WithExposedPort(8000).
		WithEntrypoint([]string{"courier"}).
		WithDefaultArgs([]string{"serve"})
}
