package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/z4fwan/z.om/internal/ban"
	"github.com/z4fwan/z.om/internal/hub"
	"github.com/z4fwan/z.om/internal/messaging"
	"github.com/z4fwan/z.om/internal/metrics"
	"github.com/z4fwan/z.om/internal/protocol"
	"github.com/z4fwan/z.om/internal/ratelimit"
	"github.com/z4fwan/z.om/internal/ws"
)

// errTooManyConnects rejects handshakes from IPs that reconnect too fast.
var errTooManyConnects = errors.New("too many connection attempts")

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	metricsAddr := ":9090"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	hubConfig := hub.DefaultConfig()
	if v := os.Getenv("WAIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			hubConfig.WaitTimeout = d
		}
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsConfig.Name = "zom-server"
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis (bans + rate limits) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	pingCancel()

	banStore := ban.NewStore(rdb)
	limiter := ratelimit.NewLimiter(rdb)

	log.Printf("z.om realtime server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  metrics_addr:    %s", metricsAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  wait_timeout:    %s", hubConfig.WaitTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)

	h := hub.New(hubConfig)
	h.SetReportSink(messaging.NewReportSubmitter(natsClient, natsConfig.RequestTimeout))

	// allowRate enforces a rate limit rule for a connection, telling the
	// client when it is throttled. Redis failures fail open.
	allowRate := func(conn *ws.Connection, rule ratelimit.Rule) bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		ok, _ := limiter.Allow(ctx, conn.ID, rule)
		if !ok {
			frame, err := protocol.NewEvent(protocol.EventRateLimited, protocol.RateLimitedData{
				RetryAfter: int(rule.Window.Seconds()),
			})
			if err == nil {
				_ = conn.WriteMessage(frame)
			}
		}
		return ok
	}

	// relayRaw marshals a typed payload back to raw bytes for relaying.
	relayRaw := func(msg interface{}) json.RawMessage {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil
		}
		return data
	}

	dispatcher := ws.NewEventDispatcher()

	// -----------------------------------------------------------------------
	// register-user — late identity binding
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventRegisterUser, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.RegisterUserData)
		if !ok || m.UserID == "" {
			return
		}
		conn.Identity = m.UserID
		h.RegisterUser(conn.ID, m.UserID)
	})

	// -----------------------------------------------------------------------
	// stranger:joinQueue — enter the stranger queue (ban + rate checked)
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventJoinQueue, func(conn *ws.Connection, msg interface{}) {
		profile, _ := msg.(json.RawMessage)

		if conn.Identity != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			banned, remaining, reason, err := banStore.IsBanned(ctx, conn.Identity)
			cancel()
			// Fail open on Redis errors: an outage must not block the queue.
			if err == nil && banned {
				frame, err := protocol.NewEvent(protocol.EventBanned, protocol.BannedData{
					Reason:   reason,
					Duration: remaining,
				})
				if err == nil {
					_ = conn.WriteMessage(frame)
				}
				return
			}
		}

		if !allowRate(conn, ratelimit.RuleJoin) {
			return
		}

		h.JoinQueue(conn.ID, profile)
	})

	// -----------------------------------------------------------------------
	// stranger:skip — leave the current pairing and rematch
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventSkip, func(conn *ws.Connection, msg interface{}) {
		if !allowRate(conn, ratelimit.RuleJoin) {
			return
		}
		h.Skip(conn.ID)
	})

	// -----------------------------------------------------------------------
	// stranger:chatMessage — relay text to the current partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventStrangerMsg, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ChatMessageData)
		if !ok || m.Message == "" {
			return
		}
		if !allowRate(conn, ratelimit.RuleMessage) {
			return
		}
		h.RelayToPartner(conn.ID, protocol.EventStrangerMsg, relayRaw(m))
	})

	// -----------------------------------------------------------------------
	// stranger:addFriend — exchange display profiles across the pairing
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventAddFriend, func(conn *ws.Connection, msg interface{}) {
		h.AddFriend(conn.ID)
	})

	// -----------------------------------------------------------------------
	// stranger:report — file a moderation report against the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventReport, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ReportData)
		if !ok {
			return
		}
		h.Report(conn.ID, m)
	})

	// -----------------------------------------------------------------------
	// webrtc:* — opaque signaling relayed to the current partner
	// -----------------------------------------------------------------------
	for _, event := range []string{
		protocol.EventWebRTCOffer,
		protocol.EventWebRTCAnswer,
		protocol.EventWebRTCCandidate,
	} {
		event := event
		dispatcher.Register(event, func(conn *ws.Connection, msg interface{}) {
			data, _ := msg.(json.RawMessage)
			h.RelayToPartner(conn.ID, event, data)
		})
	}

	// -----------------------------------------------------------------------
	// private:* — identity-addressed call signaling
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.EventInitiateCall, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.InitiateCallData)
		if !ok || m.ReceiverID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.ReceiverID, protocol.EventIncomingCall, relayRaw(m))
	})

	dispatcher.Register(protocol.EventCallAccepted, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.CallAcceptedData)
		if !ok || m.CallerID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.CallerID, protocol.EventCallAccepted, relayRaw(m))
	})

	dispatcher.Register(protocol.EventCallRejected, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.CallRejectedData)
		if !ok || m.CallerID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.CallerID, protocol.EventCallRejected, relayRaw(m))
	})

	dispatcher.Register(protocol.EventPrivateOffer, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.PrivateOfferData)
		if !ok || m.ReceiverID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.ReceiverID, protocol.EventPrivateOffer, relayRaw(m))
	})

	dispatcher.Register(protocol.EventPrivateAnswer, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.PrivateAnswerData)
		if !ok || m.CallerID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.CallerID, protocol.EventPrivateAnswer, relayRaw(m))
	})

	dispatcher.Register(protocol.EventPrivateCandidate, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.PrivateCandidateData)
		if !ok || m.TargetUserID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.TargetUserID, protocol.EventPrivateCandidate, relayRaw(m))
	})

	dispatcher.Register(protocol.EventEndCall, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.EndCallData)
		if !ok || m.TargetUserID == "" {
			return
		}
		h.RelayToIdentity(conn.ID, m.TargetUserID, protocol.EventCallEnded, relayRaw(m))
	})

	server := ws.NewServer(config, dispatcher.Dispatch)
	h.SetSender(server)

	server.SetOnConnect(func(conn *ws.Connection) {
		h.Connect(conn.ID, conn.Identity)
	})
	server.SetOnDisconnect(func(conn *ws.Connection) {
		h.Disconnect(conn.ID)
	})
	server.SetUpgradeCheck(func(r *http.Request) error {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ok, _ := limiter.Allow(ctx, host, ratelimit.RuleConnect)
		if !ok {
			return errTooManyConnects
		}
		return nil
	})

	// Admin actions arrive over NATS and are delivered to the target user's
	// live connection by the hub.
	if err := natsClient.SubscribeAdminActions(func(msg messaging.AdminActionMsg) {
		h.AdminAction(msg.UserID, msg.Action, msg.Payload)
	}); err != nil {
		log.Fatalf("failed to subscribe to admin actions: %v", err)
	}

	go h.Run()

	// Metrics endpoint.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.Printf("metrics listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		h.Stop()
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
