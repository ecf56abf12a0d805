package main

import (
	"context"
	"fmt"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/admission"
	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/database"
	"github.com/RIKUY-ORG/Rikuy/api/src/docs"
	"github.com/RIKUY-ORG/Rikuy/api/src/external"
	"github.com/RIKUY-ORG/Rikuy/api/src/group"
	"github.com/RIKUY-ORG/Rikuy/api/src/identity"
	"github.com/RIKUY-ORG/Rikuy/api/src/ledger"
	"github.com/RIKUY-ORG/Rikuy/api/src/middleware"
	"github.com/RIKUY-ORG/Rikuy/api/src/ops"
	"github.com/RIKUY-ORG/Rikuy/api/src/outbox"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/api/src/report"
	"github.com/RIKUY-ORG/Rikuy/api/src/workers"
	appbuilder "github.com/RIKUY-ORG/Rikuy/pkg/app_builder"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"
	"github.com/RIKUY-ORG/Rikuy/pkg/rest"
	"github.com/RIKUY-ORG/Rikuy/pkg/zkp"
)

const (
	serviceName    = "rikuy-api"
	startupTimeout = 30 * time.Second
)

//go:generate swag init -g main.go -o docs

// @title           Rikuy API
// @version         1.0
// @description     Anonymous citizen reports gated by zero-knowledge membership proofs
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	var (
		identityHandler *identity.Handler
		reportHandler   *report.Handler
		opsHandler      *ops.Handler
		signer          *relay.Signer
		outboxRepo      outbox.OutboxRepository
		adminSecret     []byte
	)

	appbuilder.New[ApiConfigJson, ApiConfig]().
		InitLogger(logger.GlobalLoggerConfig{}).
		LoadConfig("config.json").

		// ----- RABBITMQ -----
		InitRabbitmqConnection().
		InitRabbitmqRegistries().
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			if !a.Config.GetRabbitmqConfig().Enabled {
				return
			}
			logSink := rabbitmq.CreateRabbitmqLoggerSink(serviceName, rabbitmq.GetPublisher(rabbitmq.LogPublisher))
			logger.AddSinkToLoggerInstance(a.Logger, logSink)
		}).

		// ----- DATABASE + MIGRATIONS -----
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			database.ConnectToDatabase(a)
			database.RunMigrations(true)
		}).

		// ----- CORE SERVICES -----
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			cfg := a.Config
			secrets := LoadSecrets()
			if err := secrets.Validate(); err != nil {
				a.Logger.Fatal(err, "Invalid environment")
			}
			desc := cfg.ChainConf.Descriptor
			if err := desc.Validate(); err != nil {
				a.Logger.Fatal(err, "Invalid chain configuration")
			}
			if cfg.SecurityConf.DevMode {
				a.Logger.Warn("DEV MODE: zero-knowledge proofs are NOT verified")
			}

			ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
			defer cancel()

			db := database.GetDatabaseConnection()

			// relay
			client, err := relay.Dial(ctx, desc.RpcUrl)
			if err != nil {
				a.Logger.Fatal(err, "Cannot connect to RPC endpoint")
			}
			a.OnShutdown(client.Close)

			signer, err = relay.NewSigner(client, secrets.RelayerPrivateKey, desc.ChainId, relay.Config{
				MinBalance:          cfg.ChainConf.MinBalance,
				CriticalBalance:     cfg.ChainConf.CriticalBalance,
				ConfirmationTimeout: cfg.ChainConf.ConfirmationTimeout,
			}, rabbitmq.GetPublisher(rabbitmq.RelayAlertsPublisher), a.Logger.Named("relay"))
			if err != nil {
				a.Logger.Fatal(err, "Cannot initialize relay signer")
			}
			a.OnShutdown(signer.Wait)
			a.Logger.Fields(map[string]any{
				"network": desc.Name,
				"chainId": desc.ChainId.String(),
				"relayer": signer.Address().Hex(),
			}).Info("Relay signer ready")

			// membership group
			oracle := group.NewRootOracle(chain.NewGroupRootReader(client, desc))
			a.OnShutdown(oracle.Stop)
			members := group.New(desc, signer, oracle, a.Logger.Named("group"))

			// collaborators
			ai := external.NewAIClient(cfg.ExternalConf.AIBaseUrl, secrets.AIApiKey, cfg.ExternalConf.AIModel, cfg.ExternalConf.CallTimeout)
			if secrets.AIApiKey == "" {
				a.Logger.Warn("AI_API_KEY not set, moderation will reject every report")
			}
			var extractor identity.DocumentExtractor
			if secrets.AIApiKey != "" {
				extractor = external.NewDocumentExtractor(ai)
			}
			blobs := external.NewIPFSBlobStore(cfg.ExternalConf.IPFSApiUrl, cfg.ExternalConf.IPFSGatewayUrl, cfg.ExternalConf.CallTimeout)
			records, err := external.OpenRecordStore(cfg.ExternalConf.RecordStorePath)
			if err != nil {
				a.Logger.Fatal(err, "Cannot open record store")
			}
			a.OnShutdown(func() {
				if err := records.Close(); err != nil {
					a.Logger.Error(err, "Closing record store failed")
				}
			})

			// identity
			masterKey, err := identity.DecodeKeyMaterial(secrets.EncryptionKey)
			if err != nil {
				a.Logger.Fatal(err, "Invalid IDENTITY_ENCRYPTION_KEY")
			}
			pepper, err := identity.DecodeKeyMaterial(secrets.DocumentPepper)
			if err != nil {
				a.Logger.Fatal(err, "Invalid DOCUMENT_HASH_PEPPER")
			}
			var identityService *identity.Service
			identityHandler, identityService, err = identity.Build(db, members, extractor, identity.Settings{
				MasterKey:     masterKey,
				Pepper:        pepper,
				MaxImageBytes: cfg.RestConf.MaxUploadBytes,
			}, a.Logger.Named("identity"))
			if err != nil {
				a.Logger.Fatal(err, "Cannot initialize identity store")
			}
			if err := identityService.Reconcile(ctx, members); err != nil {
				a.Logger.Fatal(err, "Cannot rebuild membership group")
			}

			// admission
			var vk *zkp.VerifyingKey
			if path := cfg.ZkpConf.VerificationKeyPath; path != "" {
				if vk, err = zkp.LoadVerifyingKey(path); err != nil {
					a.Logger.Fatal(err, "Cannot load verification key")
				}
			}
			verifier, err := zkp.NewVerifier(cfg.SecurityConf.DevMode, vk, members, a.Logger.Named("zkp"))
			if err != nil {
				a.Logger.Fatal(err, "Cannot initialize proof verifier")
			}
			nullifiers := ledger.NewNullifierLedger(db, cfg.SecurityConf.NullifierReservation)
			gate := admission.NewGate(verifier, nullifiers, a.Logger.Named("admission"))

			// reports
			outboxRepo = outbox.NewRepo(db)
			orchestrator := report.NewOrchestrator(report.Collaborators{
				Gate:    gate,
				Blobs:   blobs,
				AI:      ai,
				Records: records,
				Content: ledger.NewContentIndex(db, cfg.SecurityConf.NullifierReservation),
				Relay:   signer,
				Events:  outboxRepo,
				Chain:   desc,
				Region:  cfg.Region,
				Timeout: cfg.ExternalConf.CallTimeout,
			}, a.Logger.Named("report"))
			reportHandler = report.NewHandler(orchestrator, cfg.RestConf.MaxUploadBytes)

			opsHandler = ops.NewHandler(signer, desc, cfg.SecurityConf.DevMode)
			adminSecret = []byte(secrets.AdminJwtSecret)
			if len(adminSecret) == 0 {
				a.Logger.Warn("ADMIN_JWT_SECRET not set, revocation endpoint is disabled")
			}
		}).

		// ----- WORKERS -----
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			a.AddWorkerServices(
				workers.NewBalanceMonitor(signer, a.Config.WorkersConf.BalanceSchedule, a.Logger),
				outbox.NewOutboxWorker(outboxRepo, rabbitmq.GetPublisher(rabbitmq.ReportEventsPublisher), a.Config.WorkersConf.OutboxSchedule, a.Logger),
			)
		}).

		// ----- MIDDLEWARE + ROUTES -----
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			a.AddGinMiddleware(
				rest.NewMiddleware(rest.GlobalGroup, middleware.RequestLogger(a.Logger)),
				rest.NewMiddleware(rest.GlobalGroup, middleware.CORS(a.Config.RestConf.AllowedOrigins)),
				rest.NewMiddleware(rest.GlobalGroup, middleware.ErrorHandler(a.Config.IsDevMode(), a.Logger)),
			)
		}).
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			a.AddGinRoutes(
				// identity
				rest.NewRoute(rest.POST, "identity", "verify", identityHandler.Verify),
				rest.NewRoute(rest.GET, "identity", "status", identityHandler.Status),
				rest.NewRoute(rest.POST, "identity", "revoke", identityHandler.Revoke, middleware.AdminAuth(adminSecret)),

				// reports
				rest.NewRoute(rest.POST, "reports", "", reportHandler.Submit),
				rest.NewRoute(rest.GET, "reports", "nearby", reportHandler.Nearby),
				rest.NewRoute(rest.GET, "reports", "recent", reportHandler.Recent),
				rest.NewRoute(rest.GET, "reports", ":id", reportHandler.Get),

				// operations
				rest.NewRoute(rest.GET, "", "health", opsHandler.Health),
				rest.NewRoute(rest.GET, "relayer", "balance", opsHandler.Balance),
				rest.NewRoute(rest.GET, "relayer", "estimate", opsHandler.Estimate),
				rest.NewRoute(rest.GET, "", "network", opsHandler.Network),
			)
		}).
		WithOption(func(a *appbuilder.AppBuilder[ApiConfigJson, ApiConfig]) {
			docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", a.Config.GetRestApiPort())
		}).
		AddSwagger().
		InitGinRouter().
		Build().
		Start()
}
