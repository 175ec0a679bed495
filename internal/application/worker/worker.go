package worker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type MessageConsumer interface {
	Start() error
	Stop()
}

// Refresher is the periodic feed refresh driver, it returns after draining
// in-flight jobs once the context is cancelled
type Refresher interface {
	Run(ctx context.Context)
}

// Worker hosts the refresh driver and the messaging consumer of one daemon process
type Worker struct {
	consumer  MessageConsumer
	refresher Refresher
	logger    Logger
}

func New(consumer MessageConsumer, refresher Refresher, logger Logger) *Worker {
	return &Worker{consumer: consumer, refresher: refresher, logger: logger}
}

// Start launches the consumer and the refresh driver and blocks until a
// termination signal. Shutdown is graceful: the driver stops scheduling new
// ticks, in-flight refresh jobs complete, then the consumer is stopped.
func (w *Worker) Start() error {
	if err := w.consumer.Start(); err != nil {
		w.logger.Error("Failure starting consumer: ", err)
		return err
	}
	w.logger.Info("Started consumer")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.refresher.Run(ctx)
	}()

	// Kill signal handling
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	w.logger.Info("Started worker, terminate with 'kill <pid>'")
	<-signalChan

	cancel()
	wg.Wait()
	return w.Stop()
}

func (w *Worker) Stop() error {
	w.consumer.Stop()
	w.logger.Info("Stopped consumer")
	return nil
}
