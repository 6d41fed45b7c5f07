package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ib-77/ropchain/internal/config"
	"github.com/ib-77/ropchain/internal/imaging"
	"github.com/ib-77/ropchain/internal/logging"
	"github.com/ib-77/ropchain/internal/store"
	"github.com/ib-77/ropchain/pkg/chain"
	"github.com/ib-77/ropchain/pkg/client"
)

// app holds everything a command needs, built from one config.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	store *store.Store
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openApp(path string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log, logOut)

	busy, err := cfg.Store.BusyTimeoutDuration()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busy,
	}, logging.Component(log, "store"))
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// stages wires the image stages to the configured directories.
func (a *app) stages() client.Stages {
	resolver := imaging.Resolver{Resources: a.cfg.Paths.Resources}
	stageLog := logging.Component(a.log, "stage")
	return client.Stages{
		Cleanup: &imaging.Cleanup{WorkDir: a.cfg.Paths.Work, Log: stageLog},
		Transform: &imaging.Blur{
			Resolver: resolver,
			WorkDir:  a.cfg.Paths.Work,
			Notifier: imaging.LogNotifier{Log: logging.Component(a.log, "notify")},
			Log:      stageLog,
		},
		Persist: &imaging.Save{Resolver: resolver, OutputDir: a.cfg.Paths.Output, Log: stageLog},
	}
}

func (a *app) newClient() *client.Client {
	exec := chain.NewExecutor(chain.WithLogger(logging.Component(a.log, "executor")))
	opts := []client.Option{
		client.WithLogger(logging.Component(a.log, "client")),
		client.WithMaxConcurrent(a.cfg.Client.MaxConcurrent),
		client.WithSubmitRate(a.cfg.Client.SubmitRate, a.cfg.Client.SubmitBurst),
	}
	if a.store != nil {
		opts = append(opts, client.WithRecorder(a.store))
	}
	return client.New(exec, a.stages(), opts...)
}
