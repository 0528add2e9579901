package departures

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/OpenTransitTools/nextdeparture/business/data/gtfs"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
)

// Board is the departure board of a stop at the time it was published
type Board struct {
	StopId      string           `json:"stop_id"`
	PublishedAt time.Time        `json:"published_at"`
	Departures  []gtfs.Departure `json:"departures"`
}

// boardDestination is where published boards are sent
type boardDestination interface {
	Name() string
	Publish(board *Board) error
}

// natsBoardDestination sends boards over nats as json
type natsBoardDestination struct {
	natsConn *nats.Conn
	subject  string
}

func (n *natsBoardDestination) Name() string {
	return "nats"
}

func (n *natsBoardDestination) Publish(board *Board) error {
	jsonData, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("error marshaling board to json: %w", err)
	}
	return n.natsConn.Publish(n.subject, jsonData)
}

// databaseBoardDestination records boards in the departure_log table
type databaseBoardDestination struct {
	db *sqlx.DB
}

func (d *databaseBoardDestination) Name() string {
	return "database"
}

func (d *databaseBoardDestination) Publish(board *Board) error {
	records := gtfs.MakeDepartureLogRecords(board.StopId, board.PublishedAt, board.Departures)
	return gtfs.RecordDepartureLog(d.db, records)
}

// boardSource produces the departures of a board
type boardSource interface {
	StopId() string
	GetDepartures(ctx context.Context, stopId string, from time.Time, direction *int) []gtfs.Departure
}

// BoardPublisher periodically publishes the target stop's departure board to nats and the database
type BoardPublisher struct {
	log          *log.Logger
	source       boardSource
	destinations []boardDestination
	metrics      *metrics.Metrics
	clock        clock.Clock
}

// NewBoardPublisher builds a BoardPublisher. A nil natsConn or db disables that destination, m and c may be nil.
func NewBoardPublisher(log *log.Logger,
	engine *Engine,
	natsConn *nats.Conn,
	subject string,
	db *sqlx.DB,
	m *metrics.Metrics,
	c clock.Clock) *BoardPublisher {
	var destinations []boardDestination
	if natsConn != nil {
		destinations = append(destinations, &natsBoardDestination{natsConn: natsConn, subject: subject})
	}
	if db != nil {
		destinations = append(destinations, &databaseBoardDestination{db: db})
	}
	return makeBoardPublisher(log, engine, destinations, m, c)
}

func makeBoardPublisher(log *log.Logger,
	source boardSource,
	destinations []boardDestination,
	m *metrics.Metrics,
	c clock.Clock) *BoardPublisher {
	if c == nil {
		c = clock.RealClock{}
	}
	return &BoardPublisher{
		log:          log,
		source:       source,
		destinations: destinations,
		metrics:      m,
		clock:        c,
	}
}

// PublishBoard builds the current board and sends it to every destination.
// All destinations are attempted, the first failure is returned.
func (p *BoardPublisher) PublishBoard(ctx context.Context) (*Board, error) {
	now := p.clock.Now()
	board := &Board{
		StopId:      p.source.StopId(),
		PublishedAt: now,
		Departures:  p.source.GetDepartures(ctx, "", now, nil),
	}
	var firstErr error
	for _, destination := range p.destinations {
		err := destination.Publish(board)
		p.metrics.BoardPublished(destination.Name(), err)
		if err != nil {
			p.log.Printf("failed to publish board for stop %s to %s, error:%v", board.StopId, destination.Name(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("publishing to %s: %w", destination.Name(), err)
			}
		}
	}
	return board, firstErr
}

// Run publishes a board every interval until ctx is done
func (p *BoardPublisher) Run(ctx context.Context, interval time.Duration) {
	if len(p.destinations) == 0 {
		p.log.Printf("no board destinations configured, publisher not started")
		return
	}
	p.log.Printf("publishing departure boards every %v", interval)
	for {
		start := time.Now()
		if board, err := p.PublishBoard(ctx); err == nil {
			p.log.Printf("published board for stop %s with %d departures in %v", board.StopId,
				len(board.Departures), time.Since(start))
		}
		sleepChan := time.After(interval)
		select {
		case <-ctx.Done():
			p.log.Printf("Exiting board publisher on shutdown")
			return
		case <-sleepChan:
		}
	}
}
