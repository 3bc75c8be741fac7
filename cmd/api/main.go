package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logging"
	"app/internal/metrics"
	"app/internal/notification"
	"app/internal/payment"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger("fulfillment-api", cfg.GoEnv)
	defer logger.Sync()

	metrics.Register()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)

	//通知経路を組み立てる
	//直接メール＋（有効時のみ）Kafka。どちらもbest-effort。
	mailer := notification.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	emailNotifier := notification.NewEmailNotifier(mailer, cfg.AdminEmail, cfg.AdminNotificationsEnabled)

	var busNotifier notification.Notifier = notification.NoopBusNotifier{}
	if cfg.KafkaEnabled {
		bus := notification.NewBusNotifier(cfg.KafkaBrokers)
		defer bus.Close()
		busNotifier = bus
	}

	dispatcher := notification.NewDispatcher(logger, emailNotifier, busNotifier)

	//PayPal
	gateway := payment.NewPayPalClient(cfg.PaypalClientID, cfg.PaypalSecret, cfg.PaypalMode)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	orderUC := usecase.NewOrderUsecase(txManager, dispatcher)
	paymentUC := usecase.NewPaymentUsecase(orderRepo, gateway, orderUC)

	//Handler生成
	h := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Address:      handler.NewAddressHandler(addressUC),
		Order:        handler.NewOrderHandler(orderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		AdminOrder:   handler.NewAdminOrderHandler(orderUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	}

	e := server.New(cfg, logger, h)

	logger.Info("starting server", zap.String("port", cfg.Port), zap.Bool("kafka_enabled", cfg.KafkaEnabled))
	if err := server.Start(e, cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
