package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fieldservice/backend/internal/bootstrap"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// env carries the output streams shared by every command
type env struct {
	out io.Writer
	in  io.Reader
}

// open loads configuration and wires the services. Confirmations are
// asked on the terminal.
func (e *env) open(ctx context.Context) (*bootstrap.Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		return nil, nil, err
	}
	c, err := bootstrap.New(ctx, cfg, log, shared.ConfirmFunc(e.confirm))
	if err != nil {
		logger.Sync(log)
		return nil, nil, err
	}
	return c, func() {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close record store", zap.Error(err))
		}
		logger.Sync(log)
	}, nil
}

func (e *env) confirm(_ context.Context, message string) bool {
	fmt.Fprintf(e.out, "%s [y/N] ", message)
	answer, err := bufio.NewReader(e.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// withInbox returns a context collecting the notifications of one command
func withInbox(ctx context.Context) (context.Context, *notification.Inbox) {
	return notification.WithInbox(ctx)
}

// printNotifications writes what the services reported while running
func (e *env) printNotifications(inbox *notification.Inbox) {
	for _, msg := range inbox.Messages() {
		fmt.Fprintf(e.out, "[%s] %s\n", msg.Level, msg.Message)
	}
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail reports err and maps it to an exit status
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}
