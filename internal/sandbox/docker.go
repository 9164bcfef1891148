package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

// cleanupTimeout bounds the kill, inspect, log and remove calls made after
// the command has finished or timed out.
const cleanupTimeout = 15 * time.Second

// defaultOutputBytes caps captured output when the invocation sets no limit.
const defaultOutputBytes = 1 << 20

// DockerSandbox runs every invocation in a fresh container that is removed
// afterwards.
type DockerSandbox struct {
	cli    *client.Client
	logger *zerolog.Logger
}

var _ Sandbox = (*DockerSandbox)(nil)

func NewDockerSandbox(logger *zerolog.Logger) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerSandbox{cli: cli, logger: logger}, nil
}

// Ping checks that the docker daemon is reachable.
func (s *DockerSandbox) Ping(ctx context.Context) error {
	if _, err := s.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return nil
}

func (s *DockerSandbox) Close() error {
	return s.cli.Close()
}

func (s *DockerSandbox) Exec(ctx context.Context, inv Invocation) (*Result, error) {
	if err := inv.validate(); err != nil {
		return nil, err
	}

	pidsLimit := inv.Limits.PidsLimit
	resp, err := s.cli.ContainerCreate(ctx, &container.Config{
		Image:           inv.Image,
		Cmd:             inv.command(),
		WorkingDir:      WorkDir,
		User:            inv.User,
		Tty:             false,
		NetworkDisabled: true,
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     inv.Limits.MemoryBytes,
			MemorySwap: inv.Limits.MemoryBytes, // no swap
			NanoCPUs:   inv.Limits.NanoCPUs,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=16m,mode=1777",
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: inv.HostDir,
			Target: WorkDir,
		}},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	id := resp.ID
	log := s.logger.With().Str("container", shortID(id)).Logger()

	cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancelCleanup()
	defer func() {
		if err := s.cli.ContainerRemove(cleanupCtx, id, container.RemoveOptions{Force: true}); err != nil {
			log.Warn().Err(err).Msg("failed to remove container")
		}
	}()

	waitCtx, cancelWait := context.WithTimeout(ctx, inv.Timeout)
	defer cancelWait()
	statusCh, errCh := s.cli.ContainerWait(waitCtx, id, container.WaitConditionNextExit)

	start := time.Now()
	if err := s.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	res := &Result{}
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("failed to wait for container: %s", status.Error.Message)
		}
		res.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to wait for container: %w", err)
		}
		res.TimedOut = true
		res.ExitCode = 137
		if err := s.cli.ContainerKill(cleanupCtx, id, "SIGKILL"); err != nil {
			log.Debug().Err(err).Msg("kill after timeout")
		}
	}
	res.Duration = time.Since(start)

	inspect, err := s.cli.ContainerInspect(cleanupCtx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	if inspect.State != nil {
		res.OOMKilled = inspect.State.OOMKilled
		if !res.TimedOut {
			res.ExitCode = inspect.State.ExitCode
		}
	}

	if err := s.collectLogs(cleanupCtx, id, inv.MaxOutputBytes, res); err != nil {
		return nil, err
	}

	log.Debug().
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Bool("oom_killed", res.OOMKilled).
		Dur("duration", res.Duration).
		Msg("container finished")
	return res, nil
}

func (s *DockerSandbox) collectLogs(ctx context.Context, id string, limit int, res *Result) error {
	if limit <= 0 {
		limit = defaultOutputBytes
	}
	reader, err := s.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("failed to read container logs: %w", err)
	}
	defer reader.Close()

	// One byte over the limit lets the caller see that output was cut.
	stdout := &cappedBuffer{limit: limit + 1}
	stderr := &cappedBuffer{limit: limit + 1}
	if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil {
		return fmt.Errorf("failed to capture container logs: %w", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return nil
}

func (s *DockerSandbox) EnsureImage(ctx context.Context, img string) error {
	_, _, err := s.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}

	s.logger.Info().Str("image", img).Msg("pulling docker image")
	reader, err := s.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	_, _ = io.Copy(io.Discard, reader)

	s.logger.Info().Str("image", img).Msg("pulled docker image")
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
