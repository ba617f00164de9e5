package main

import (
	"context"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/EmmanuelMendoza/specmatic/pkg/stubfile"
	"github.com/EmmanuelMendoza/specmatic/pkg/stubserver"
)

func (a *app) newStubCmd() *cobra.Command {
	var (
		host    string
		port    int
		dataDir string
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "stub [contract...]",
		Short: "Serve contracts as a stub server",
		Long: `Serves responses generated from the contracts. Stub files in the data
directory are checked against the contracts and take precedence over them.

Example:
  specmatic stub orders.yaml --port 9000 --data ./stubs --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("host") {
				a.cfg.Stub.Host = host
			}
			if flags.Changed("port") {
				a.cfg.Stub.Port = port
			}
			if flags.Changed("data") {
				a.cfg.Stub.DataDir = dataDir
			}
			if flags.Changed("strict") {
				a.cfg.Stub.Strict = strict
			}
			if err := a.cfg.validate(); err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			srv, err := a.buildStubServer(cmd.Context(), args)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(a.cfg.Stub.Host, strconv.Itoa(a.cfg.Stub.Port))
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "address to listen on (default 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default 9000)")
	cmd.Flags().StringVar(&dataDir, "data", "", "directory of stub files")
	cmd.Flags().BoolVar(&strict, "strict", false, "answer 400 when no stub matches")
	return cmd
}

// buildStubServer loads the contracts and the stub files. Stubs the
// contracts reject are logged and skipped.
func (a *app) buildStubServer(ctx context.Context, args []string) (*stubserver.Server, error) {
	features, err := a.loadFeatures(ctx, args)
	if err != nil {
		return nil, err
	}
	srv := stubserver.New(features, stubserver.Config{Strict: a.cfg.Stub.Strict, Logger: a.log})
	if a.cfg.Stub.DataDir == "" {
		return srv, nil
	}

	stubs, err := stubfile.LoadDir(a.cfg.Stub.DataDir)
	if err != nil {
		return nil, err
	}
	loaded := 0
	for _, stub := range stubs {
		if err := srv.AddStub(stub.ScenarioStub); err != nil {
			a.log.Warnf("skipping stub %s: %v", stub.Path, err)
			continue
		}
		loaded++
	}
	a.log.Infof("loaded %d of %d stubs from %s", loaded, len(stubs), a.cfg.Stub.DataDir)
	return srv, nil
}
