// Command server wires the order adapter's pipeline together: config load,
// risk engine + Redis mirror, order processor, FIX session + gateway,
// ingress listener, and a Prometheus metrics endpoint. Grounded on the
// teacher's backend/cmd/server/main.go bootstrap shape (config.Load ->
// construct components in dependency order -> log a ready banner ->
// ListenAndServe), narrowed from a multi-tenant trading engine to this
// single-purpose adapter.
package main

import (
	"bufio"
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/config"
	"github.com/rtxfix/orderadapter/internal/fixcodec"
	"github.com/rtxfix/orderadapter/internal/fixsession"
	"github.com/rtxfix/orderadapter/internal/gateway"
	"github.com/rtxfix/orderadapter/internal/ingress"
	"github.com/rtxfix/orderadapter/internal/instrument"
	"github.com/rtxfix/orderadapter/internal/metrics"
	"github.com/rtxfix/orderadapter/internal/processor"
	"github.com/rtxfix/orderadapter/internal/risk"
	"github.com/rtxfix/orderadapter/internal/riskcache"
	"github.com/rtxfix/orderadapter/internal/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("═══════════════════════════════════════════════════════════")
	log.Println("  FIX 4.4 Order Adapter")
	log.Printf("  session=%s sender=%s target=%s", cfg.Session.SessionID, cfg.Session.SenderCompID, cfg.Session.TargetCompID)
	log.Println("═══════════════════════════════════════════════════════════")

	cache, err := riskcache.New(riskcache.Config{
		Address:      cfg.Risk.RedisAddress,
		Password:     cfg.Risk.RedisPassword,
		DB:           cfg.Risk.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       cfg.Risk.RedisKeyPrefix,
	})
	if err != nil {
		log.Printf("[RISKCACHE] Redis unavailable, continuing without write-through mirror: %v", err)
	} else {
		defer cache.Close()
	}

	minOptionPrice, err := decimal.NewFromString(cfg.Risk.MinOptionPrice)
	if err != nil {
		log.Fatalf("invalid RISK_MIN_OPTION_PRICE %q: %v", cfg.Risk.MinOptionPrice, err)
	}

	var snapshotWriter risk.SnapshotWriter
	if cache != nil {
		snapshotWriter = cache
	}
	riskEngine := risk.New(risk.Limits{
		Enabled:            cfg.Risk.Enabled,
		MaxOrderSize:       cfg.Risk.MaxOrderSize,
		MaxDailyVolume:     cfg.Risk.MaxDailyVolume,
		MaxPositionSize:    cfg.Risk.MaxPositionSize,
		MaxOrdersPerSecond: cfg.Risk.MaxOrdersPerSecond,
		RateWindow:         cfg.Risk.RateWindow,
		MinOptionPrice:     minOptionPrice,
	}, snapshotWriter)

	proc := processor.New(
		validator.New(validator.DefaultOptionSymbols()),
		instrument.New(instrument.DefaultOptionSymbols()),
		riskEngine,
	)

	seqStore, msgStore, err := buildStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to construct sequence/message store: %v", err)
	}

	statusFeed := fixsession.NewWSStatusFeed()
	go statusFeed.Run()

	session := fixsession.New(fixsession.Config{
		SessionID:         cfg.Session.SessionID,
		BeginString:       cfg.Session.BeginString,
		SenderCompID:      cfg.Session.SenderCompID,
		TargetCompID:      cfg.Session.TargetCompID,
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		ReconnectInterval: cfg.Session.ReconnectInterval,
		LogonTimeout:      cfg.Session.LogonTimeout,
	}, seqStore, msgStore, statusFeed)

	gw := gateway.New(session, riskEngine)

	ingressListener := ingress.New(ingress.Config{
		Address:       cfg.Ingress.Address,
		HighWaterMark: cfg.Ingress.HighWaterMark,
	}, proc, gw)

	go connectAndServeSession(cfg.Session.CounterpartyAddr, session, gw)

	go func() {
		if err := ingressListener.Run(); err != nil {
			log.Fatalf("ingress listener stopped: %v", err)
		}
	}()

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/status", statusFeed)
	log.Printf("Metrics/status server listening on %s", cfg.Metrics.Address)
	if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
		log.Fatal(err)
	}
}

// buildStore selects the FileStore or PostgresStore backend per §4.6's
// persistence contract; both satisfy fixsession.SequenceStore and
// fixsession.MessageStore identically.
func buildStore(cfg config.StoreConfig) (fixsession.SequenceStore, fixsession.MessageStore, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := fixsession.NewPostgresStore(context.Background(), pool)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := fixsession.NewFileStore(cfg.FileDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// connectAndServeSession dials the counterparty, logs on, and drives the
// inbound read loop, reconnecting after the configured interval whenever the
// read loop ends. A clean logout is not told apart from other disconnects:
// it is followed by a reconnect as well.
func connectAndServeSession(addr string, session *fixsession.Session, gw *gateway.Gateway) {
	for {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Printf("[FIX] dial %s failed: %v, retrying", addr, err)
			time.Sleep(session.ReconnectInterval())
			continue
		}

		if err := session.Connect(conn); err != nil {
			log.Printf("[FIX] logon failed: %v", err)
			conn.Close()
			time.Sleep(session.ReconnectInterval())
			continue
		}

		readInboundLoop(conn, session, gw)
		session.TransportDown()
		time.Sleep(session.ReconnectInterval())
	}
}

func readInboundLoop(conn net.Conn, session *fixsession.Session, gw *gateway.Gateway) {
	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		raw, err := fixsession.ReadMessage(reader)
		if len(raw) > 0 {
			msg, parseErr := fixcodec.Parse(raw)
			if parseErr != nil {
				log.Printf("[FIX] parse error: %v", parseErr)
			} else {
				dispatchInbound(msg, session, gw)
			}
		}
		if err != nil {
			log.Printf("[FIX] transport read ended: %v", err)
			return
		}
	}
}

// dispatchInbound hands session-level messages to the Session state machine
// and application-level messages (ExecutionReport, OrderCancelReject) to
// the Gateway (§4.8).
func dispatchInbound(msg *fixcodec.Message, session *fixsession.Session, gw *gateway.Gateway) {
	switch msg.MsgType {
	case fixcodec.MsgTypeExecutionReport:
		if err := session.HandleInbound(msg); err != nil {
			log.Printf("[FIX] sequence error on ExecutionReport: %v", err)
			return
		}
		report, err := fixcodec.ParseExecutionReport(msg)
		if err != nil {
			log.Printf("[FIX] malformed ExecutionReport: %v", err)
			return
		}
		gw.OnExecutionReport(report)
	case fixcodec.MsgTypeOrderCancelReject:
		if err := session.HandleInbound(msg); err != nil {
			log.Printf("[FIX] sequence error on OrderCancelReject: %v", err)
			return
		}
		gw.OnCancelReject(fixcodec.ParseCancelReject(msg))
	default:
		if err := session.HandleInbound(msg); err != nil {
			log.Printf("[FIX] session error handling %s: %v", msg.MsgType, err)
		}
	}
}
