package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/config"
	"github.com/mdouchement/uploadstore/internal/database"
	"github.com/mdouchement/uploadstore/internal/scheduler"
	"github.com/mdouchement/uploadstore/internal/storage"
	"github.com/mdouchement/uploadstore/internal/webserver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfgpath string
)

func main() {
	c := &cobra.Command{
		Use:     "uploadstore",
		Short:   "Chunked file store over an embedded document database",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfgpath, "config", "c", ".", "Directory of the uploadstore.yaml configuration file")

	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for uploadstore",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(reconcileCmd)

	serverCmd.Flags().StringP("binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringP("port", "p", "5000", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load([]string{cfgpath}, c.Flags())
			if err != nil {
				return err
			}
			return database.StormInit(cfg.DatabaseFile())
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load([]string{cfgpath}, c.Flags())
			if err != nil {
				return err
			}
			return database.StormReIndex(cfg.DatabaseFile())
		},
	}

	//

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Remove abandoned uploads and orphan chunks once",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load([]string{cfgpath}, c.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			db, err := database.StormOpen(cfg.DatabaseFile())
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			report, err := scheduler.Reconcile(scheduler.Controller{
				Logger: log,
				Bucket: newBucket(cfg, db, log),
				Grace:  cfg.PendingGrace,
			})
			if err != nil {
				return err
			}

			fmt.Printf("abandoned uploads: %d\norphan chunks: %d\nextra chunks: %d\n",
				report.PendingFiles, report.OrphanChunks, report.ExtraChunks)
			return nil
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load([]string{cfgpath}, c.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			//

			// The database is fully opened before the server accepts requests.
			db, err := database.StormOpen(cfg.DatabaseFile())
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			bucket := newBucket(cfg, db, log)

			//

			stop, err := scheduler.Start(scheduler.Controller{
				Logger:        log,
				Bucket:        bucket,
				Specification: cfg.ReconcileSpec,
				Grace:         cfg.PendingGrace,
			})
			if err != nil {
				return errors.Wrap(err, "could not start scheduler")
			}
			defer stop()

			//

			engine := webserver.EchoEngine(webserver.Controller{
				Version:      c.Parent().Version,
				Logger:       log,
				Bucket:       bucket,
				DumpRequests: cfg.DumpRequests,
			})
			webserver.PrintRoutes(engine)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				<-ctx.Done()

				shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				if err := engine.Shutdown(shutdown); err != nil {
					log.Error(err)
				}
			}()

			log.Infof("Server listening on %s", cfg.Listen())
			err = engine.Start(cfg.Listen())
			if err == http.ErrServerClosed {
				return nil
			}
			return errors.Wrap(err, "could not run server")
		},
	}
)

func newLogger(cfg *config.Config) logger.Logger {
	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return logger.WrapLogrus(log)
}

func newBucket(cfg *config.Config, db database.Client, log logger.Logger) *storage.Bucket {
	return storage.NewBucket(db, log, storage.Options{
		Name:      cfg.Bucket,
		ChunkSize: cfg.ChunkSize,
	})
}
