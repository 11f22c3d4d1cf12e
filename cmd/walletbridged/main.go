package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blendizzard/walletbridge/internal/bridge"
	"github.com/blendizzard/walletbridge/internal/browser"
	"github.com/blendizzard/walletbridge/internal/config"
	"github.com/blendizzard/walletbridge/internal/httpapi"
	"github.com/blendizzard/walletbridge/internal/pending"
	"github.com/blendizzard/walletbridge/internal/popup"
	"github.com/blendizzard/walletbridge/internal/ready"
	"github.com/blendizzard/walletbridge/internal/store"
	"github.com/blendizzard/walletbridge/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to HuJSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	walletOrigin, err := cfg.WalletOrigin()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var journal store.Journal
	if cfg.RedisAddr != "" {
		journal = store.NewRedisJournal(cfg.RedisAddr)
		log.Printf("use redis journal: %s", cfg.RedisAddr)
	} else {
		journal = store.NewMemoryJournal()
		log.Printf("use memory journal")
	}

	gate := ready.NewGate()
	table := pending.NewTable()

	var b *bridge.Bridge
	// The endpoint needs a sink before the bridge exists; a thin indirection
	// breaks the construction cycle.
	endpoint := ws.NewEndpoint(walletOrigin, sinkFunc(func(origin string, data []byte) {
		b.HandleInbound(origin, data)
	}))

	launcher := browser.NewLauncher(endpoint)
	launcher.Binary = cfg.BrowserBinary

	popups := popup.NewManager(launcher, popup.Config{
		BaseURL:      cfg.WalletBaseURL,
		Width:        cfg.PopupWidth,
		Height:       cfg.PopupHeight,
		ScreenWidth:  cfg.ScreenWidth,
		ScreenHeight: cfg.ScreenHeight,
		PollInterval: cfg.ClosePollInterval(),
	}, gate, table)

	b, err = bridge.New(cfg, popups, table, gate, journal, endpoint)
	if err != nil {
		log.Fatalf("build bridge failed: %v", err)
	}
	endpoint.SetOnLost(popups.CloseDetected)
	b.OnStatus = func(status string) {
		log.Printf("wallet status: %s", status)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.WalletWSPath, endpoint.HandleWallet)
	httpapi.NewServer(b, cfg.APIAuthToken).RegisterHandlers(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("walletbridged listening on %s (wallet origin %s)", cfg.ListenAddr, walletOrigin)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	b.Destroy()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// sinkFunc adapts a function to ws.Sink.
type sinkFunc func(origin string, data []byte)

func (f sinkFunc) HandleInbound(origin string, data []byte) { f(origin, data) }
