package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CandleScope/internal/domain/models"
	domrepo "CandleScope/internal/domain/repository"
	pkgkafka "CandleScope/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages and feeds the aggregator.
type KafkaTicksHandler struct {
	topic   string
	agg     *CandleAggregator
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, agg *CandleAggregator, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, agg: agg, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.agg.Add(ctx, &models.Tick{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Price:     m.C,
		Volume:    m.V,
	})
	h.metrics.RecordLatency("aggregate_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_aggregate")
		return err
	}
	h.metrics.RecordTickIngested("kafka", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
