package main

import (
	"context"
	"os/signal"
	"syscall"

	"app/internal/config"
	"app/internal/logging"
	"app/internal/notification"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Kafkaのイベントを購読してメールを送る常駐プロセス。
// KAFKA_ENABLED=false の構成では起動しても意味がないので終了する。
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger("fulfillment-notifier", cfg.GoEnv)
	defer logger.Sync()

	if !cfg.KafkaEnabled {
		logger.Warn("kafka is disabled, nothing to consume")
		return
	}

	mailer := notification.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := notification.NewConsumer(cfg.KafkaBrokers, notification.ConsumerGroupID, mailer, logger)

	logger.Info("consumer starting", zap.Strings("brokers", cfg.KafkaBrokers))
	consumer.Run(ctx)
	logger.Info("consumer stopped")
}
