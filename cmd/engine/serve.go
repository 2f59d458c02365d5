package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/navapbc/labs-referral-pilot/internal/httpapi"
	"github.com/navapbc/labs-referral-pilot/internal/poll"
	"github.com/navapbc/labs-referral-pilot/internal/scheduler"
)

const envShutdownToken = "REFERRAL_SHUTDOWN_TOKEN"

func cmdServe(args []string) error {
	var common commonFlags
	var host string
	var noCron bool

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&host, "host", "127.0.0.1", "address to bind")
	fs.BoolVar(&noCron, "no-cron", false, "only run batches when POST /crawl/run is called")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	pl, lk, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer lk.Close()
	poller := poll.NewPoller(pl)

	var cfgVal atomic.Value
	cfgVal.Store(a.cfg)

	mux := httpapi.NewMux(httpapi.Deps{
		Store:       a.store,
		Hub:         a.hub,
		Prompts:     a.prompts,
		Poller:      poller,
		CfgVal:      &cfgVal,
		UserCfgPath: a.cfgPath,
	})

	addr := net.JoinHostPort(host, fmt.Sprint(a.cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token := os.Getenv(envShutdownToken)
	if token == "" {
		if token, err = randomToken(16); err != nil {
			return err
		}
	}
	mux.HandleFunc("/shutdown", shutdownHandler(token, srv))

	var runner *scheduler.Runner
	if !noCron {
		runner = scheduler.New(a.cfg.Crawl.Schedule, "crawl", poller.Task)
		if err := runner.Start(ctx); err != nil {
			_ = ln.Close()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("engine listening on http://%s (driver=%s)", addr, a.cfg.Database.Driver)
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Printf("[engine] signal received, shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	case err = <-errCh:
	}

	if runner != nil {
		// Wait for an in-flight batch so its merges commit.
		<-runner.Stop().Done()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownHandler stops the server when a loopback caller presents the
// token in X-Shutdown-Token.
func shutdownHandler(token string, srv *http.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpapi.WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			httpapi.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpapi.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		httpapi.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
}
