package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/zlog"
	"google.golang.org/api/option"

	"github.com/notofine/backend/internal/app"
	"github.com/notofine/backend/internal/auth"
	"github.com/notofine/backend/internal/channels"
	"github.com/notofine/backend/internal/config"
	"github.com/notofine/backend/internal/consumer"
	"github.com/notofine/backend/internal/handlers"
	"github.com/notofine/backend/internal/lock"
	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/payments"
	"github.com/notofine/backend/internal/scheduler"
	"github.com/notofine/backend/internal/service"
	"github.com/notofine/backend/internal/storage/postgres"
)

func main() {
	zlog.Init()

	cfg, err := config.NewAppConfig("./config/dev.yml")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	db, err := postgres.Open(ctx, cfg.DB.MasterDSN, cfg.DB.Slaves)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("open database")
	}

	rdb, err := lock.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("connect redis")
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, 5*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("connect rabbitmq")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("open rabbitmq channel")
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(service.TicketQueue, true, false, false, false, nil); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("declare ticket queue")
	}
	publisher := rabbitmq.NewPublisher(ch, "")

	if err := os.MkdirAll(cfg.Server.UploadsDir, 0o755); err != nil {
		zlog.Logger.Fatal().Err(err).Str("dir", cfg.Server.UploadsDir).Msg("create uploads dir")
	}

	// stores
	users := postgres.NewUserRepo(db)
	tickets := postgres.NewTicketRepo(db)
	reminders := postgres.NewReminderRepo(db)
	records := postgres.NewNotificationRepo(db)
	devices := postgres.NewDeviceTokenRepo(db)
	plans := postgres.NewPlanRepo(db)
	subs := postgres.NewSubscriptionRepo(db)
	pays := postgres.NewPaymentRepo(db)

	// channel senders; push stays disabled when no FCM credentials are
	// configured and fails as a validation error instead
	senders := channels.SenderMap{
		models.ChannelEmail: channels.NewEmailSender(channels.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Password: cfg.SMTP.Password,
		}),
		models.ChannelSMS:  channels.NewSMSSender(),
		models.ChannelPush: channels.NewPushSender(newMessagingClient(ctx, cfg.FCM.CredentialsFile), devices),
	}

	notifier := service.NewNotificationService(users, records, senders)
	engine := service.NewReminderEngine(reminders, tickets, records, notifier, lock.NewRedisLocker(rdb))
	ticketSvc := service.NewTicketService(tickets, publisher)
	reminderSvc := service.NewReminderService(reminders, tickets)
	userSvc := service.NewUserService(users, devices)
	subSvc := service.NewSubscriptionService(plans, subs, pays, users, payments.NewStubProvider(cfg.Payments.CheckoutBaseURL))
	sessions := auth.NewSessions(rdb)

	handler := handlers.NewHandler(userSvc, ticketSvc, reminderSvc, notifier, engine, subSvc, sessions, db, rdb, cfg.Server.UploadsDir)
	application := app.NewApp(cfg, handler)

	sched, err := scheduler.New(engine, cfg.Scheduler.Interval)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("create scheduler")
	}
	sched.Start()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	rmqConsumer := rabbitmq.NewConsumer(ch, &rabbitmq.ConsumerConfig{Queue: service.TicketQueue, AutoAck: true})
	go func() {
		if err := consumer.Run(consumerCtx, rmqConsumer, consumer.NewTicketEventProcessor(notifier)); err != nil && consumerCtx.Err() == nil {
			zlog.Logger.Error().Err(err).Msg("ticket consumer stopped")
		}
	}()

	go application.MustStart()
	zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("server started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	stopConsumer()
	sched.Stop()
	application.Stop()
	zlog.Logger.Info().Msg("server gracefully stopped")
}

// newMessagingClient builds the FCM client, or returns nil when push is
// not configured for this deployment.
func newMessagingClient(ctx context.Context, credentialsFile string) *messaging.Client {
	if credentialsFile == "" {
		zlog.Logger.Warn().Msg("fcm credentials not configured, push channel disabled")
		return nil
	}
	fbApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("init firebase app, push channel disabled")
		return nil
	}
	client, err := fbApp.Messaging(ctx)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("init fcm messaging, push channel disabled")
		return nil
	}
	return client
}
