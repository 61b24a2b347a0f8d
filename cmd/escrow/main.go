package main

import (
	"context"
	"fmt"
	"os"

	"stream-escrow-go/internal/auth"
	"stream-escrow-go/internal/cli"
	"stream-escrow-go/internal/common"
	"stream-escrow-go/internal/config"
	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/models"

	"go.uber.org/zap"
)

// backend opens services on first use so commands like token never touch
// the database.
type backend struct {
	cfg      *models.Config
	services *common.Services
}

func (b *backend) Engine(ctx context.Context) (*escrow.Engine, error) {
	if b.services == nil {
		services, err := common.InitializeServices(ctx, b.cfg)
		if err != nil {
			return nil, err
		}
		b.services = services
	}
	return b.services.Engine, nil
}

func (b *backend) IssueToken(principal string) (string, error) {
	tokens, err := auth.NewTokenService(b.cfg.Api.TokenSecret, b.cfg.Api.TokenTtl)
	if err != nil {
		return "", err
	}
	return tokens.Issue(principal)
}

func (b *backend) Close() {
	if b.services != nil {
		b.services.Close()
	}
}

func main() {
	_, loggerCleanup := common.InitializeLogger()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	b := &backend{cfg: cfg}
	err = cli.NewRootCommand(b).ExecuteContext(context.Background())
	b.Close()
	loggerCleanup()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
