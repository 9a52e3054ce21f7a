// Package kafka publishes the finished forecast, the latest buoy snapshots,
// and the buoy observation history to the sink topics consumed by the
// website collaborator.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
)

// Publisher writes run artifacts to Kafka. It implements forecast.Sink.
type Publisher struct {
	forecasts  *kafkago.Writer
	buoys      *kafkago.Writer
	timeseries *kafkago.Writer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewPublisher creates writers for the forecast, buoy snapshot, and
// observation-history topics.
func NewPublisher(brokers []string, forecastTopic, buoyTopic, timeseriesTopic string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return &Publisher{
		forecasts:  newWriter(forecastTopic),
		buoys:      newWriter(buoyTopic),
		timeseries: newWriter(timeseriesTopic),
		logger:     logger,
		metrics:    metrics,
	}
}

// PublishForecast writes the whole forecast as a single message keyed by its
// generation time, so consumers can compact to the newest run.
func (p *Publisher) PublishForecast(ctx context.Context, f domain.Forecast) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("serialize forecast: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(f.GeneratedAt.Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "horizon_hours", Value: []byte(fmt.Sprintf("%d", f.HorizonHours))},
			{Key: "stations", Value: []byte(fmt.Sprintf("%d", len(f.Stations)))},
		},
	}
	if err := p.forecasts.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish forecast: %w", err)
	}
	p.metrics.MessagesPublished.Inc()
	return nil
}

// PublishBuoyData writes one message per buoy snapshot, keyed by buoy ID so
// topic compaction keeps the latest reading per buoy.
func (p *Publisher) PublishBuoyData(ctx context.Context, d domain.BuoyData) error {
	msgs := make([]kafkago.Message, 0, len(d.Buoys))
	for id, snap := range d.Buoys {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("serialize buoy snapshot %s: %w", id, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(id),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "freshness", Value: []byte(snap.Freshness)},
				{Key: "generated_utc", Value: []byte(d.GeneratedAt.Format(time.RFC3339))},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.buoys.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish buoy snapshots: %w", err)
	}
	p.metrics.MessagesPublished.Add(float64(len(msgs)))
	return nil
}

// PublishTimeseries writes one message per buoy history, keyed by buoy ID so
// topic compaction keeps the latest window per buoy. Buoys absent from the
// artifact publish nothing.
func (p *Publisher) PublishTimeseries(ctx context.Context, ts domain.BuoyTimeseries) error {
	msgs := make([]kafkago.Message, 0, len(ts.Buoys))
	for id, series := range ts.Buoys {
		data, err := json.Marshal(series)
		if err != nil {
			return fmt.Errorf("serialize buoy timeseries %s: %w", id, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(id),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "generated_utc", Value: []byte(ts.GeneratedAt.Format(time.RFC3339))},
				{Key: "window_hours", Value: []byte(fmt.Sprintf("%d", ts.WindowHours))},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.timeseries.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish buoy timeseries: %w", err)
	}
	p.metrics.MessagesPublished.Add(float64(len(msgs)))
	return nil
}

// Close closes the underlying writers.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range []*kafkago.Writer{p.forecasts, p.buoys, p.timeseries} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
