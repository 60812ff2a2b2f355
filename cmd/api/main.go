package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-secret-friend/internal/application/delivery"
	"github.com/go-secret-friend/internal/application/draw"
	"github.com/go-secret-friend/internal/application/event"
	"github.com/go-secret-friend/internal/application/housekeeping"
	"github.com/go-secret-friend/internal/application/otp"
	"github.com/go-secret-friend/internal/application/session"
	"github.com/go-secret-friend/internal/config"
	"github.com/go-secret-friend/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-secret-friend/internal/infrastructure/jwt"
	"github.com/go-secret-friend/internal/infrastructure/memory"
	"github.com/go-secret-friend/internal/infrastructure/metrics"
	s3infra "github.com/go-secret-friend/internal/infrastructure/s3"
	sendgridinfra "github.com/go-secret-friend/internal/infrastructure/sendgrid"
	"github.com/go-secret-friend/internal/infrastructure/smtp"
	"github.com/go-secret-friend/internal/infrastructure/sns"
	twilioinfra "github.com/go-secret-friend/internal/infrastructure/twilio"
	"github.com/go-secret-friend/internal/pkg/logging"
	transporthttp "github.com/go-secret-friend/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type eventStore interface {
	event.EventStore
	draw.EventStore
}

type stores struct {
	codes        otp.Store
	sessions     session.SessionStore
	events       eventStore
	participants event.ParticipantStore
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.New(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()
	st := openStores(ctx, cfg)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	emailSender, emailProvider, err := newEmailSender(cfg.Delivery, cfg.AppEnv)
	if err != nil {
		slog.Error("email delivery not available", "err", err)
		os.Exit(1)
	}
	phoneSender, phoneProvider, err := newPhoneSender(ctx, cfg.Delivery, cfg.AppEnv)
	if err != nil {
		slog.Error("whatsapp delivery not available", "err", err)
		os.Exit(1)
	}
	dispatcher := delivery.NewDispatcher(delivery.DispatcherDeps{
		Email:         emailSender,
		EmailProvider: emailProvider,
		Phone:         phoneSender,
		PhoneProvider: phoneProvider,
		CountryCode:   cfg.Delivery.CountryCode,
		Timeout:       cfg.Delivery.Timeout,
	})

	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo:     st.sessions,
		JWTProvider:     jwtProvider,
		TokenTTL:        cfg.JWTExpiry,
		RefreshTokenDur: time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:     st.codes,
		Deliverer: dispatcher,
		Minter:    sessionSvc,
		Confirmer: event.NewPhoneConfirmer(st.events, st.participants),
		Config: otp.Config{
			TTL:         cfg.OTP.TTL,
			MaxAttempts: cfg.OTP.MaxAttempts,
			Cooldown:    cfg.OTP.Cooldown,
			HashCost:    cfg.OTP.HashCost,
		},
	})
	eventSvc := event.NewService(event.ServiceDeps{
		EventRepo:         st.events,
		ParticipantRepo:   st.participants,
		Codes:             otpSvc,
		Notifier:          dispatcher,
		ResultsBeforeDate: cfg.Draw.ResultsVisibleBeforeDate,
	})
	drawDeps := draw.ServiceDeps{
		EventRepo:          st.events,
		ParticipantRepo:    st.participants,
		Notifier:           dispatcher,
		NotifyParticipants: cfg.Draw.NotifyParticipants,
		MaxAttempts:        cfg.Draw.MaxAttempts,
	}
	if archive := newArchive(ctx, cfg); archive != nil {
		drawDeps.Archive = archive
	}
	drawSvc := draw.NewService(drawDeps)

	purger, err := housekeeping.NewService(otpSvc, cfg.PurgeSchedule)
	if err != nil {
		slog.Error("invalid purge schedule", "err", err)
		os.Exit(1)
	}
	purger.Start()

	deps := &transporthttp.Deps{
		Sessions: sessionSvc,
		Codes:    otpSvc,
		Events:   eventSvc,
		Draws:    drawSvc,
	}
	if cfg.MetricsEnabled {
		metrics.MustRegister(prometheus.DefaultRegisterer)
		deps.Metrics = promhttp.Handler()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	purger.Stop()
	drawSvc.Wait()
	slog.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) stores {
	if cfg.StoreDriver == "memory" {
		slog.Warn("using in-memory store, data is lost on restart")
		m := memory.NewStore()
		return stores{codes: m.Codes(), sessions: m.Sessions(), events: m.Events(), participants: m.Participants()}
	}
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("dynamodb not available", "err", err)
		os.Exit(1)
	}
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	t := cfg.DynamoTables
	return stores{
		codes:        dynamo.NewCodeRepo(client, t.VerificationCodes),
		sessions:     dynamo.NewSessionRepo(client, t.Sessions),
		events:       dynamo.NewEventRepo(client, t.Events),
		participants: dynamo.NewParticipantRepo(client, t.Participants, t.Events),
	}
}

// newEmailSender builds the configured email transport. The log transport is
// only handed out in development; elsewhere missing credentials stop startup.
func newEmailSender(cfg config.DeliveryConfig, appEnv string) (delivery.EmailSender, string, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey != "" {
			return sendgridinfra.NewSender(cfg), "sendgrid", nil
		}
		slog.Warn("SENDGRID_API_KEY not set")
	case "smtp":
		return smtp.NewMailer(cfg), "smtp", nil
	}
	sender, err := delivery.NewLogSender(appEnv)
	if err != nil {
		return nil, "", fmt.Errorf("email provider %q unavailable: %w", cfg.EmailProvider, err)
	}
	slog.Warn("emails go to the log", "provider", cfg.EmailProvider)
	return sender, "log", nil
}

func newPhoneSender(ctx context.Context, cfg config.DeliveryConfig, appEnv string) (delivery.PhoneSender, string, error) {
	switch cfg.PhoneProvider {
	case "twilio":
		if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
			return twilioinfra.NewSender(cfg), "twilio", nil
		}
		slog.Warn("twilio credentials not set")
	case "sns":
		sender, err := sns.NewSender(ctx, cfg.SNSRegion)
		if err == nil {
			return sender, "sns", nil
		}
		slog.Warn("SNS sender not available", "err", err)
	}
	sender, err := delivery.NewLogSender(appEnv)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp provider %q unavailable: %w", cfg.PhoneProvider, err)
	}
	slog.Warn("whatsapp messages go to the log", "provider", cfg.PhoneProvider)
	return sender, "log", nil
}

// newArchive returns nil when no bucket is configured or the client cannot be built.
func newArchive(ctx context.Context, cfg *config.Config) draw.Archive {
	if cfg.S3BucketName == "" {
		return nil
	}
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		slog.Warn("draw archive disabled", "err", err)
		return nil
	}
	return s3infra.NewStore(client, cfg.S3BucketName)
}
