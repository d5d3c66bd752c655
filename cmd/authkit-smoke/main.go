// Command authkit-smoke exercises a live backend end to end: sign in (or
// sign up), call an authenticated endpoint, open a websocket, and print the
// metric counters. It is a manual verification tool, not a benchmark.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authkit "github.com/loopchat/authkit"
	promexport "github.com/loopchat/authkit/metrics/export/prometheus"
	"github.com/loopchat/authkit/tokenstore"
	"github.com/loopchat/authkit/tokenstore/file"
	redisstore "github.com/loopchat/authkit/tokenstore/redis"
)

func main() {
	// Optional; flags and real env still win.
	_ = godotenv.Load()

	var (
		baseURL    = flag.String("base-url", os.Getenv("AUTHKIT_BASE_URL"), "backend origin, e.g. https://api.loopchat.dev")
		identifier = flag.String("identifier", os.Getenv("AUTHKIT_IDENTIFIER"), "email, username, or phone")
		password   = flag.String("password", os.Getenv("AUTHKIT_PASSWORD"), "account password")
		storeKind  = flag.String("store", "memory", "token store: memory, file, or redis")
		filePath   = flag.String("file", "authkit-credentials.json", "credential file path for -store=file")
		passphrase = flag.String("passphrase", os.Getenv("AUTHKIT_PASSPHRASE"), "encryption passphrase for -store=file")
		redisAddr  = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address for -store=redis; empty starts miniredis")
		probePath  = flag.String("probe", "/users/me", "authenticated endpoint to call")
		wsPath     = flag.String("ws", "", "websocket path to dial, empty to skip")
		metricsOn  = flag.String("metrics-listen", "", "serve Prometheus metrics on this address while running")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *baseURL == "" || *identifier == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "base-url, identifier, and password are required")
		os.Exit(2)
	}

	store, cleanup, err := buildStore(*storeKind, *filePath, *passphrase, *redisAddr, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store setup failed")
	}
	defer cleanup()

	manager, err := authkit.New().
		WithBaseURL(*baseURL).
		WithTokenStore(store).
		WithLogger(log).
		WithEventSink(authkit.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *metricsOn != "" {
		exporter := promexport.NewExporter(manager)
		go func() {
			log.Info().Str("addr", *metricsOn).Msg("serving metrics")
			if err := http.ListenAndServe(*metricsOn, exporter.Handler()); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	sess, err := manager.Restore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("restore failed")
	}
	if sess != nil {
		log.Info().Str("user_id", sess.UserID).Msg("session restored from store")
	} else {
		sess, err = manager.SignIn(ctx, *identifier, *password)
		if err != nil {
			log.Fatal().Err(err).Msg("sign-in failed")
		}
		log.Info().Str("user_id", sess.UserID).Str("tier", string(sess.Tier)).Msg("signed in")
	}

	var probe map[string]any
	if err := manager.Get(ctx, *probePath, &probe); err != nil {
		log.Fatal().Err(err).Str("path", *probePath).Msg("authenticated probe failed")
	}
	log.Info().Str("path", *probePath).Int("fields", len(probe)).Msg("authenticated probe ok")

	if *wsPath != "" {
		if err := probeSocket(ctx, manager, *wsPath, log); err != nil {
			log.Fatal().Err(err).Msg("websocket probe failed")
		}
	}

	if err := manager.SignOut(ctx); err != nil {
		log.Fatal().Err(err).Msg("sign-out failed")
	}
	log.Info().Msg("signed out")

	snapshot := manager.MetricsSnapshot()
	for id, value := range snapshot.Counters {
		if value > 0 {
			fmt.Printf("metric %d = %d\n", id, value)
		}
	}
}

func probeSocket(ctx context.Context, manager *authkit.Manager, path string, log zerolog.Logger) error {
	socket, err := manager.DialSocket(ctx, path, false)
	if err != nil {
		return err
	}
	defer socket.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := socket.Write(pingCtx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		return err
	}
	_, data, err := socket.Read(pingCtx)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("websocket round trip ok")
	return nil
}

func buildStore(kind, filePath, passphrase, redisAddr string, log zerolog.Logger) (tokenstore.Store, func(), error) {
	switch kind {
	case "memory":
		return nil, func() {}, nil
	case "file":
		if passphrase == "" {
			return nil, nil, fmt.Errorf("-store=file requires a passphrase")
		}
		return file.New(filePath, passphrase), func() {}, nil
	case "redis":
		if redisAddr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("starting miniredis: %w", err)
			}
			client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
			log.Info().Str("addr", mr.Addr()).Msg("using miniredis")
			return redisstore.New(client, "authkit-smoke"), func() {
				_ = client.Close()
				mr.Close()
			}, nil
		}
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{redisAddr}})
		return redisstore.New(client, "authkit-smoke"), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
