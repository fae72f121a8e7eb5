// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command msgbrokerd runs the message broker process: it loads
// configuration, wires the TCP transport, dispatcher, queue handler,
// and logger together, and drives the broker loop until a termination
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nexusmq/msgbroker/broker"
	"github.com/nexusmq/msgbroker/config"
	"github.com/nexusmq/msgbroker/dispatch"
	"github.com/nexusmq/msgbroker/logging"
	"github.com/nexusmq/msgbroker/netaddr"
	"github.com/nexusmq/msgbroker/queue"
	"github.com/nexusmq/msgbroker/transport/tcp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fs := flag.NewFlagSet("msgbrokerd", flag.ExitOnError)
	flags, err := config.ParseFlags(fs, os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("msgbrokerd: build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ip, err := netaddr.FromString(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("msgbrokerd: %w", err)
	}

	registry := queue.NewRegistry()
	outbox := make(chan dispatch.Envelope, 256)
	queueHandler := dispatch.NewQueueHandler(registry, outbox)
	dispatcher := dispatch.NewDispatcher()
	dispatcher.Register(dispatch.ChannelQueue, queueHandler)

	manager := tcp.NewManager(ip, cfg.ListenPort)
	b := broker.New(manager, dispatcher, outbox,
		broker.WithLogger(logger),
		broker.WithMaxFieldLen(cfg.MaxFieldLen),
		broker.WithShutdownHook(func() {
			dispatcher.Shutdown()
			registry.CloseAll()
		}),
	)

	if err := b.Open(); err != nil {
		return fmt.Errorf("msgbrokerd: open: %w", err)
	}
	logger.Info("broker listening",
		zap.String("addr", ip.String()),
		zap.Int("port", cfg.ListenPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal received, shutting down", zap.String("signal", s.String()))
		cancel()
	}()

	err = b.Run(ctx, cfg.PollTimeout)
	closeErr := b.Close()
	if err != nil && err != context.Canceled {
		return fmt.Errorf("msgbrokerd: run: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("msgbrokerd: close: %w", closeErr)
	}
	return nil
}
