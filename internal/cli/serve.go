package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"inspectd/internal/api"
	"inspectd/internal/inspector"
	"inspectd/internal/inspector/httpprobe"
	"inspectd/internal/lock"
	"inspectd/internal/scheduler"
)

var (
	serveAddr     string
	leaseTTL      time.Duration
	resyncEvery   time.Duration
	inspectorName string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the task scheduler",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", ":8080", "HTTP bind address")
	f.DurationVar(&leaseTTL, "lease-ttl", scheduler.DefaultLeaseTTL, "lease TTL per firing")
	f.DurationVar(&resyncEvery, "resync", 0, "re-run schedule reconciliation against the store at this interval (0 disables)")
	f.StringVar(&inspectorName, "inspector", "noop", "inspection callback: noop or http")
}

func runServe(cmd *cobra.Command, args []string) error {
	db, repo, err := openRepo()
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := loadLocation()
	if err != nil {
		return err
	}

	instanceID := "instance-" + uuid.NewString()

	var locker lock.Locker
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()
		locker = lock.NewRedisLocker(client, instanceID)
	} else {
		log.Warn().Msg("no redis configured, using in-process locks; do not run redundant instances this way")
		locker = lock.NewMemoryStore().Locker(instanceID)
	}

	var insp inspector.Inspector = inspector.Noop{}
	if inspectorName == "http" {
		insp = httpprobe.Probe{}
	}

	exec := scheduler.NewExecutor(repo, locker, insp, leaseTTL)
	registry := scheduler.NewRegistry(repo, exec, loc)
	defer registry.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registry.LoadAndScheduleAll(ctx); err != nil {
		return err
	}
	log.Info().Str("instance_id", instanceID).Str("tz", loc.String()).Msg("scheduler started")

	if resyncEvery > 0 {
		go func() {
			t := time.NewTicker(resyncEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := registry.LoadAndScheduleAll(ctx); err != nil {
						log.Error().Err(err).Msg("periodic resync failed")
					}
				}
			}
		}()
	}

	srv := &http.Server{Addr: serveAddr, Handler: api.NewServer(repo, registry)}
	go func() {
		log.Info().Str("addr", serveAddr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
	return nil
}
