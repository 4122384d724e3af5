// chesswager-server coordinates wagered chess games: it mirrors escrow
// contract events into an in-memory lobby, adjudicates moves with the rule
// engine, and settles checkmates on chain with the server's signer key.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesswager/internal/auth"
	"github.com/hailam/chesswager/internal/config"
	"github.com/hailam/chesswager/internal/ethchain"
	"github.com/hailam/chesswager/internal/httpapi"
	"github.com/hailam/chesswager/internal/lobby"
	"github.com/hailam/chesswager/internal/poller"
	"github.com/hailam/chesswager/internal/settle"
	"github.com/hailam/chesswager/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func run(log *zap.Logger, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	signer, err := ethchain.NewSignerFromMnemonic(cfg.Mnemonic)
	if err != nil {
		return err
	}
	log.Info("settler key derived", zap.String("address", signer.Address().Hex()))

	client := ethchain.NewClient(cfg.RPCURLs(), signer, log)
	defer client.Close()

	escrow, err := ethchain.NewEscrow(client, common.HexToAddress(cfg.Escrow.Address), cfg.Escrow.ChainID)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	lb := lobby.New(nil, log)
	settler := settle.New(escrow, lb, st, log)
	lb.SetDispatcher(settler)

	verifier, err := auth.NewPrivyVerifier(ctx, auth.PrivyConfig{
		AppID:     cfg.PrivyAppID,
		AppSecret: cfg.PrivyAppSecret,
	}, log)
	if err != nil {
		return err
	}

	p := poller.New(escrow, lb, st, log)
	p.SetInterval(cfg.PollInterval)

	for chainID, ok := range client.ValidateConnectivity(ctx) {
		log.Info("rpc connectivity",
			zap.Int64("chainId", chainID), zap.Bool("reachable", ok))
	}

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.New(lb, verifier, client, p, log)
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return settler.Run(ctx) })
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
