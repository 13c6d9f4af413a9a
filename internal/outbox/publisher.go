// Package outbox is the at-least-once Kafka publisher for trade and
// market-data events. It sits behind the engine.TradeObserver and
// engine.MarketDataObserver interfaces (an external collaborator
// never imported by internal/engine) and durably records every trade
// message in a pebble ledger before handing it to sarama, so a crash
// mid-publish is recovered by the retry sweep rather than lost.
// Market-data messages are sent best-effort and not ledgered.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"precedence/internal/engine"
)

// tradeMessage is the wire shape published to the trade topic.
type tradeMessage struct {
	TradeID     uint64 `json:"trade_id"`
	Symbol      string `json:"symbol"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Timestamp   int64  `json:"timestamp"`
}

// marketMessage is the wire shape published to the market-data topic.
type marketMessage struct {
	Symbol        string `json:"symbol"`
	BestBid       int64  `json:"best_bid"`
	BestAsk       int64  `json:"best_ask"`
	LastPrice     int64  `json:"last_price"`
	LastTradeTime int64  `json:"last_trade_time"`
	TotalVolume   int64  `json:"total_volume"`
	TotalTrades   int64  `json:"total_trades"`
	Spread        int64  `json:"spread"`
}

// Publisher implements engine.TradeObserver and
// engine.MarketDataObserver. Trade events go through the durable
// ledger; market-data events are best-effort (a missed top-of-book
// broadcast is superseded by the next one, so no ledger is needed).
type Publisher struct {
	logger *zap.Logger
	ledger *Ledger

	producer    sarama.SyncProducer
	tradeTopic  string
	marketTopic string
}

// Config configures NewPublisher.
type Config struct {
	Brokers     []string
	TradeTopic  string
	MarketTopic string
}

// NewPublisher dials brokers with a sync producer requiring acks from
// every in-sync replica.
func NewPublisher(cfg Config, ledger *Ledger, logger *zap.Logger) (*Publisher, error) {
	scfg := sarama.NewConfig()
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	scfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		logger:      logger.Named("outbox"),
		ledger:      ledger,
		producer:    producer,
		tradeTopic:  cfg.TradeTopic,
		marketTopic: cfg.MarketTopic,
	}, nil
}

// Close closes the underlying producer. The ledger is owned by the
// caller and closed separately.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// OnTrade implements engine.TradeObserver. It is called synchronously
// on the worker goroutine that produced the trade. The ledger write is
// a synced pebble write and the send is a synchronous broker round
// trip, so the worker waits for both; a failed send is retried by
// Sweep rather than here.
func (p *Publisher) OnTrade(t engine.Trade) {
	payload, err := json.Marshal(tradeMessage{
		TradeID:     t.ID,
		Symbol:      t.Symbol,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price,
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp,
	})
	if err != nil {
		p.logger.Error("marshal trade", zap.Error(err))
		return
	}

	key := KeyFor(t.Symbol, t.ID)
	if err := p.ledger.PutNew(key, payload); err != nil {
		p.logger.Error("ledger put new", zap.String("symbol", t.Symbol), zap.Uint64("trade_id", t.ID), zap.Error(err))
		return
	}
	p.send(key, p.tradeTopic, payload)
}

// OnMarketData implements engine.MarketDataObserver. Not ledgered: the
// next update supersedes a dropped one.
func (p *Publisher) OnMarketData(m engine.MarketData) {
	payload, err := json.Marshal(marketMessage{
		Symbol:        m.Symbol,
		BestBid:       m.BestBid,
		BestAsk:       m.BestAsk,
		LastPrice:     m.LastPrice,
		LastTradeTime: m.LastTradeTime,
		TotalVolume:   m.TotalVolume,
		TotalTrades:   m.TotalTrades,
		Spread:        m.Spread,
	})
	if err != nil {
		p.logger.Error("marshal market data", zap.Error(err))
		return
	}
	msg := &sarama.ProducerMessage{Topic: p.marketTopic, Key: sarama.StringEncoder(m.Symbol), Value: sarama.ByteEncoder(payload)}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.logger.Warn("market data send failed, dropping", zap.String("symbol", m.Symbol), zap.Error(err))
	}
}

func (p *Publisher) send(key string, topic string, payload []byte) {
	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(payload)}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		_ = p.ledger.UpdateState(key, StateFailed, 1, now())
		return
	}
	// RequiredAcks = WaitForAll makes a successful SendMessage a durable
	// broker ack already, so there is nothing left to wait on: record
	// ACKED and prune right away instead of leaving an entry the sweep
	// would otherwise hold onto forever.
	_ = p.ledger.UpdateState(key, StateAcked, 0, now())
	_ = p.ledger.Delete(key)
}

// Sweep runs until ctx is cancelled, periodically retrying every NEW or
// FAILED ledger entry.
func (p *Publisher) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Publisher) sweepOnce() {
	retry := func(key string, rec Record) error {
		p.send(key, p.tradeTopic, rec.Payload)
		return nil
	}
	_ = p.ledger.ScanByState(StateNew, retry)
	_ = p.ledger.ScanByState(StateFailed, retry)
}
