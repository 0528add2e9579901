// Package departuresvc runs the departure web service and the optional departure board publisher
package departuresvc

import (
	"context"
	logger "log"
	"os"
	"sync"
	"time"

	"github.com/OpenTransitTools/nextdeparture/business/departures"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
)

// StartServices brings up the webservice and, when publisher is not nil, the board publisher.
// Returns after both have stopped on shutdown signal.
func StartServices(log *logger.Logger,
	engine *departures.Engine,
	publisher *departures.BoardPublisher,
	m *metrics.Metrics,
	httpPort int,
	publishInterval time.Duration,
	shutdownSignal chan os.Signal) {

	wg := sync.WaitGroup{}
	webServiceShutdown := make(chan bool, 1)
	publisherCtx, cancelPublisher := context.WithCancel(context.Background())
	defer cancelPublisher()

	wg.Add(1)
	go runWebService(log, &wg, engine, m, httpPort, webServiceShutdown)
	if publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(publisherCtx, publishInterval)
		}()
	}

	<-shutdownSignal
	log.Printf("Exiting on shutdown signal, shutting down subroutines")
	webServiceShutdown <- true
	cancelPublisher()
	wg.Wait()
	log.Printf("Subroutines shut down, exiting departure service")
}
