package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// stack wraps docker compose for the postgres, redis, minio, api and worker
// services defined in the compose file.
type stack struct {
	file string
}

func (s *stack) compose(ctx context.Context, args ...string) error {
	if _, err := os.Stat(s.file); err != nil {
		return fmt.Errorf("compose file: %w", err)
	}
	return runCommand(ctx, "docker", append([]string{"compose", "-f", s.file}, args...)...)
}

// flagArgs appends flag to args when set is true.
func flagArgs(args []string, set bool, flag string) []string {
	if set {
		return append(args, flag)
	}
	return args
}

func runCommand(ctx context.Context, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
