package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newStackCmd() *cobra.Command {
	s := &stack{}
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the docker compose stack (postgres, redis, minio, api, worker)",
	}
	cmd.PersistentFlags().StringVarP(&s.file, "compose-file", "f", defaultComposeFile, "Compose file to use")

	var noCache bool
	build := &cobra.Command{
		Use:   "build [service...]",
		Short: "Build the api and worker images",
		RunE: func(cmd *cobra.Command, services []string) error {
			args := flagArgs([]string{"build"}, noCache, "--no-cache")
			return s.compose(cmd.Context(), append(args, services...)...)
		},
	}
	build.Flags().BoolVar(&noCache, "no-cache", false, "Disable Docker build cache")

	var foreground, skipBuild bool
	up := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the stack in production mode",
		RunE: func(cmd *cobra.Command, services []string) error {
			args := flagArgs([]string{"up"}, !skipBuild, "--build")
			args = flagArgs(args, !foreground, "-d")
			return s.compose(cmd.Context(), append(args, services...)...)
		},
	}
	up.Flags().BoolVar(&foreground, "foreground", false, "Stay attached to service output")
	up.Flags().BoolVar(&skipBuild, "skip-build", false, "Reuse existing images")

	var volumes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Stop the stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.compose(cmd.Context(), flagArgs([]string{"down"}, volumes, "-v")...)
		},
	}
	down.Flags().BoolVar(&volumes, "volumes", false, "Also drop the postgres and minio volumes")

	var follow bool
	logs := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show service logs",
		RunE: func(cmd *cobra.Command, services []string) error {
			args := flagArgs([]string{"logs"}, follow, "--follow")
			return s.compose(cmd.Context(), append(args, services...)...)
		},
	}
	logs.Flags().BoolVar(&follow, "follow", false, "Stream logs continuously")

	cmd.AddCommand(build, up, down, logs)
	return cmd
}

func newTestCmd() *cobra.Command {
	var race, cover bool
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run go test (defaults to ./...)",
		RunE: func(cmd *cobra.Command, pkgs []string) error {
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			args := flagArgs([]string{"test"}, race, "-race")
			args = flagArgs(args, cover, "-cover")
			if databaseURL != "" {
				if err := os.Setenv("JANSEVAK_TEST_DATABASE_URL", databaseURL); err != nil {
					return err
				}
			}
			return runCommand(cmd.Context(), "go", append(args, pkgs...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable the race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Report coverage")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL for repository integration tests")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a binary from source with go run",
	}
	for name, pkg := range map[string]string{"api": "./cmd/server", "worker": "./cmd/worker"} {
		pkg := pkg
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "go run " + pkg,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd.Context(), "go", append([]string{"run", pkg}, args...)...)
			},
		})
	}
	return cmd
}
