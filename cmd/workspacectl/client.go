package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"teamsync/api/internal/logging"
	"teamsync/api/internal/remote"
	"teamsync/api/internal/replica"
	"teamsync/api/internal/syncer"
)

// session bundles a bootstrapped coordinator with whatever its replica
// backend needs released.
type session struct {
	coord  *syncer.Coordinator
	logger zerolog.Logger
	close  func()
}

func openLocal(logger zerolog.Logger) (syncer.LocalStore, func(), error) {
	switch replicaBackend {
	case "file", "":
		local, err := replica.NewFileStore(replicaPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return local, func() {}, nil
	case "redis":
		local, err := replica.NewRedisStore(redisURL, cfg.ReplicaKey, logger)
		if err != nil {
			return nil, nil, err
		}
		return local, func() { _ = local.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown replica backend %q (want file or redis)", replicaBackend)
	}
}

// openSession loads the replica and reconciles it with the central copy
// once. An unreachable central copy is not an error.
func openSession(ctx context.Context) (*session, error) {
	logger := logging.New(logLevel)
	local, closeLocal, err := openLocal(logger)
	if err != nil {
		return nil, err
	}

	coord := syncer.New(local, remote.New(remoteURL, syncToken, logger), syncer.Options{
		PollInterval:  cfg.PollInterval,
		UpdatedSignal: cfg.UpdatedSignal,
		Logger:        logger,
	})
	if err := coord.Bootstrap(ctx); err != nil {
		closeLocal()
		return nil, err
	}
	return &session{coord: coord, logger: logger, close: closeLocal}, nil
}
