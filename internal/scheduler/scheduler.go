package scheduler

import (
	"context"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/storage"
	"github.com/robfig/cron/v3"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Logger        logger.Logger
	Bucket        *storage.Bucket
	Specification string
	// Grace is the time after which a pending upload is considered abandoned.
	Grace time.Duration
}

// Start lauches the scheduler asynchronously.
// The returned function stops it and waits for the running pass.
func Start(c Controller) (func(), error) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		Reconcile(c)
	})
	if err != nil {
		return nil, err
	}
	log.Info("Reconciliation task registred")

	cron.Start()
	log.Info("Scheduler is running")

	return func() {
		<-cron.Stop().Done()
		log.Info("Scheduler stopped")
	}, nil
}

// Reconcile runs one reconciliation pass.
func Reconcile(c Controller) (storage.Report, error) {
	log := c.Logger.WithPrefix("[reconcile]")

	report, err := c.Bucket.Reconcile(context.Background(), c.Grace)
	if err != nil {
		log.Error(err)
		return report, err
	}

	if !report.Clean() {
		log.Infof("Removed %d abandoned uploads, %d orphan chunks and %d extra chunks",
			report.PendingFiles, report.OrphanChunks, report.ExtraChunks)
	}
	return report, nil
}
