package departures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/OpenTransitTools/nextdeparture/business/gtfsmanager"
	"github.com/OpenTransitTools/nextdeparture/business/metrics"
	"github.com/OpenTransitTools/nextdeparture/foundation/clock"
)

// recordingDestination keeps every board it receives, failing with err when set
type recordingDestination struct {
	name   string
	err    error
	boards []*Board
}

func (r *recordingDestination) Name() string {
	return r.name
}

func (r *recordingDestination) Publish(board *Board) error {
	r.boards = append(r.boards, board)
	return r.err
}

func TestPublishBoard(t *testing.T) {
	is := is.New(t)
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, &fakeLiveFeed{}, nil)
	m := metrics.New()
	healthy := &recordingDestination{name: "nats"}
	broken := &recordingDestination{name: "database", err: errors.New("connection refused")}
	publisher := makeBoardPublisher(testLogger(), engine, []boardDestination{broken, healthy}, m,
		clock.NewMockClock(at(11, 0)))

	board, err := publisher.PublishBoard(context.Background())
	is.True(err != nil)
	is.Equal(board.StopId, "24")
	is.Equal(board.PublishedAt, at(11, 0))
	is.Equal(summarize(board.Departures), []string{"A@05-06 11:20 STATIC", "B@05-06 11:31 STATIC"})

	is.Equal(len(healthy.boards), 1) // attempted after the failure
	is.Equal(len(broken.boards), 1)
	is.Equal(testutil.ToFloat64(m.BoardsPublishedTotal.WithLabelValues("nats", "success")), float64(1))
	is.Equal(testutil.ToFloat64(m.BoardsPublishedTotal.WithLabelValues("database", "failure")), float64(1))
}

func TestBoardPublisherRunStopsOnCancel(t *testing.T) {
	is := is.New(t)
	store := gtfsmanager.NewStoreFromSchedule(testLogger(), ferryBuilder().build())
	engine := newTestEngine(t, ferryConfig(), store, &fakeLiveFeed{}, nil)
	destination := &recordingDestination{name: "nats"}
	publisher := makeBoardPublisher(testLogger(), engine, []boardDestination{destination}, nil,
		clock.NewMockClock(at(11, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		publisher.Run(ctx, time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not stop")
	}
	is.Equal(len(destination.boards), 1)
}
