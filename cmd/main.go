package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	"gatherly/cmd/buildCFG"
	"gatherly/internal/api"
	"gatherly/internal/callback"
	"gatherly/internal/model"
	"gatherly/internal/nav"
	"gatherly/internal/payment"
	"gatherly/internal/registration"
	"gatherly/internal/session"
	"gatherly/internal/store"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}

	apiCfg, err := buildCFG.BuildAPIConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build API config")
	}
	storePath, err := buildCFG.BuildStorePath(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store config")
	}
	payCfg, err := buildCFG.BuildPaymentConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build payment config")
	}

	persisted, err := store.Open(storePath, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}

	client, err := api.NewClient(apiCfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API client")
	}

	sess := session.New(persisted, client, &log)

	router := newTerminalRouter(&log)
	guard := nav.New(sess, router, &log)
	guard.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session")
	}
	router.markReady()
	guard.Evaluate()

	gate := registration.NewGate(client, sess, persisted, &log)

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "login":
		if len(os.Args) != 4 {
			log.Fatal().Msg("usage: gatherly login <email> <password>")
		}
		if err := sess.SignIn(ctx, os.Args[2], os.Args[3]); err != nil {
			log.Fatal().Err(err).Msg("sign in failed")
		}

	case "logout":
		sess.SignOut(ctx)

	case "whoami":
		current := sess.Current()
		if !current.Authenticated() {
			log.Info().Msg("not signed in")
			return
		}
		log.Info().Str("name", current.User.Name).Str("email", current.User.Email).Msg("signed in as")

	case "registrations":
		payloads, err := client.UserRegistrations(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to fetch registrations")
		}
		for _, p := range payloads {
			log.Info().Str("event_id", p.EventID).Str("status", p.Status).Msg("registration")
		}

	case "register":
		if len(os.Args) < 3 {
			log.Fatal().Msg("usage: gatherly register <event-id> [quantity]")
		}
		quantity := 1
		if len(os.Args) > 3 {
			if _, err := fmt.Sscanf(os.Args[3], "%d", &quantity); err != nil {
				log.Fatal().Msg("quantity must be a number")
			}
		}
		runRegister(ctx, &log, client, gate, payCfg, os.Args[2], quantity)

	default:
		usage()
	}
}

// runRegister drives the full registration flow: authoritative price
// fetch, gate decision, and for paid events the initiate-then-watch
// cycle with the callback server attached.
func runRegister(ctx context.Context, log *zerolog.Logger, client *api.Client, gate *registration.Gate, payCfg buildCFG.PaymentConfig, eventID string, quantity int) {
	eventPayload, err := client.Event(ctx, eventID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch event")
	}
	event := eventPayload.ToModel()

	outcome, err := gate.Register(ctx, eventID, quantity, model.PriceInfo{
		Price:    event.Price,
		Currency: event.Currency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("registration failed")
	}

	if outcome.Record != nil {
		log.Info().
			Str("event_id", outcome.Record.EventID).
			Str("status", string(outcome.Record.Status)).
			Msg("registration confirmed")
		return
	}

	initiator := payment.NewInitiator(client, log)
	intent, err := initiator.Initiate(ctx, *outcome.Payment)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start payment")
	}

	watcher := payment.NewWatcher(client, log,
		payment.WithInterval(payCfg.PollInterval),
		payment.WithMaxWait(payCfg.MaxWait),
		payment.WithCompletionHook(func(ctx context.Context, eventID string) {
			gate.Invalidate(ctx, eventID)
		}),
	)

	srv := callback.NewServer(log)
	srv.Attach(watcher)
	go func() {
		if err := srv.Run(payCfg.CallbackAddr); err != nil {
			log.Error().Err(err).Msg("callback server stopped")
		}
	}()

	log.Info().Str("url", intent.RedirectURL).Msg("open the payment page in your browser")

	// Ctrl-C while waiting counts as backing out of the payment page.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info().Msg("checkout interrupted, abandoning payment watch")
		watcher.Abandon()
	}()

	result, err := watcher.Watch(ctx, intent)
	srv.Attach(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("payment watch failed")
	}

	switch result.State {
	case payment.StateCompleted:
		log.Info().Str("event_id", eventID).Msg("payment completed, you are registered")
	case payment.StateFailed:
		log.Error().Str("event_id", eventID).Msg("payment was declined, no registration created")
	case payment.StateAbandoned:
		log.Warn().Str("event_id", eventID).Msg("payment abandoned, no registration created")
	}
}

func usage() {
	fmt.Println("usage: gatherly <login|logout|whoami|registrations|register> [args]")
}
