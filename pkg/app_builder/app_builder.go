package appbuilder

import (
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"
	"github.com/RIKUY-ORG/Rikuy/pkg/rest"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type AppConfig interface {
	GetLoggerConfig() logger.LoggerConfig
	GetRabbitmqConfig() rabbitmq.RabbitmqConfig
	GetRestApiPort() uint16
	IsDevMode() bool
}

type WorkerService interface {
	GetServiceName() string
	StartService()
	StopService()
}

type AppBuilder[T utilities.JsonConfigObj[U], U AppConfig] struct {
	Logger *logger.Logger
	Config U

	conn           *amqp.Connection
	workerServices []WorkerService
	middleware     []rest.Middleware
	routes         []rest.Route
	engine         *gin.Engine
	shutdownHooks  []func()
}

func New[T utilities.JsonConfigObj[U], U AppConfig]() *AppBuilder[T, U] {
	return &AppBuilder[T, U]{}
}

func (a *AppBuilder[T, U]) InitLogger(loggerArgs logger.GlobalLoggerConfig) *AppBuilder[T, U] {
	logger.InitDefaultLogger(loggerArgs)
	a.Logger = logger.Default()
	a.Logger.Info("Logger initialized")

	return a
}

func (a *AppBuilder[T, U]) LoadConfig(filePath string) *AppBuilder[T, U] {
	a.Logger.Infof("Preparing to load config from %s ...", filePath)
	if err := utilities.LoadDotEnv(".env"); err != nil {
		a.Logger.Fatal(err, "Failed to load .env file")
	}

	jsonConfig, err := utilities.ReadConfig[T, U](filePath)
	if err != nil {
		a.Logger.Fatal(err, "Failed to load config")
	}

	a.Config = jsonConfig
	a.Logger = a.Logger.WithLevel(a.Config.GetLoggerConfig().LogLevel)
	a.Logger.Info("Config successfully loaded.")
	return a
}

// WithOption runs an arbitrary wiring step with access to the builder.
func (a *AppBuilder[T, U]) WithOption(option func(a *AppBuilder[T, U])) *AppBuilder[T, U] {
	option(a)
	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqConnection() *AppBuilder[T, U] {
	rabbitmqConfig := a.Config.GetRabbitmqConfig()
	if !rabbitmqConfig.Enabled {
		a.Logger.Warn("Rabbitmq disabled in config, events and alerts will not be published")
		return a
	}

	a.Logger.Info("Preparing to connect to Rabbitmq server...")
	conn, err := rabbitmq.ConnectToRabbitmq(rabbitmqConfig)
	if err != nil {
		a.Logger.Fatal(err, "Could not connect to Rabbitmq")
	}

	a.conn = conn
	a.Logger.Info("Connection with Rabbitmq server established")

	return a
}

func (a *AppBuilder[T, U]) InitRabbitmqRegistries() *AppBuilder[T, U] {
	if a.conn == nil {
		return a
	}

	a.Logger.Info("Initializing Rabbitmq registries from config")
	if err := rabbitmq.InitializePublisherRegistry(a.conn, a.Config.GetRabbitmqConfig().PublishersConfig); err != nil {
		a.Logger.Fatal(err, "Could not initialize Rabbitmq publishers")
	}
	a.Logger.Info("Successfully initialized Rabbitmq registries from config")

	return a
}

func (a *AppBuilder[T, U]) AddWorkerServices(workerServices ...WorkerService) *AppBuilder[T, U] {
	a.Logger.Info("Adding Worker Services to Application...")
	a.workerServices = append(a.workerServices, workerServices...)
	return a
}

func (a *AppBuilder[T, U]) AddGinMiddleware(middleware ...rest.Middleware) *AppBuilder[T, U] {
	a.middleware = append(a.middleware, middleware...)
	return a
}

func (a *AppBuilder[T, U]) AddGinRoutes(routes ...rest.Route) *AppBuilder[T, U] {
	a.Logger.Info("Adding Gin REST API routes to Application...")
	a.routes = append(a.routes, routes...)
	return a
}

// AddSwagger serves the registered API document under /swagger. Disabled outside devMode.
func (a *AppBuilder[T, U]) AddSwagger() *AppBuilder[T, U] {
	if !a.Config.IsDevMode() {
		return a
	}
	a.Logger.Info("Adding SwaggerUI...")
	a.routes = append(a.routes, SwaggerRoute())
	return a
}

func SwaggerRoute() rest.Route {
	return rest.NewRoute(rest.GET, "swagger", "*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// OnShutdown registers a cleanup step run after the HTTP server stops.
func (a *AppBuilder[T, U]) OnShutdown(hook func()) *AppBuilder[T, U] {
	a.shutdownHooks = append(a.shutdownHooks, hook)
	return a
}

func (a *AppBuilder[T, U]) InitGinRouter() *AppBuilder[T, U] {
	a.Logger.Info("Initializing Gin Router...")
	if !a.Config.IsDevMode() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.engine = BuildRouter(a.Logger, a.middleware, a.routes)
	a.Logger.Info("Successfully registered REST API routes.")
	return a
}

// BuildRouter groups routes by their Group and applies group-scoped middleware.
func BuildRouter(log *logger.Logger, middleware []rest.Middleware, routes []rest.Route) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	for _, m := range middleware {
		if m.Group == rest.GlobalGroup {
			router.Use(m.Handler)
		}
	}

	groups := map[string]*gin.RouterGroup{}
	for _, r := range routes {
		group, exists := groups[r.Group]
		if !exists {
			group = router.Group("/" + r.Group)
			for _, m := range middleware {
				if m.Group == r.Group {
					group.Use(m.Handler)
				}
			}
			groups[r.Group] = group
		}

		switch r.Method {
		case rest.GET:
			group.GET(r.Path, r.Handlers()...)
		case rest.POST:
			group.POST(r.Path, r.Handlers()...)
		case rest.PUT:
			group.PUT(r.Path, r.Handlers()...)
		case rest.PATCH:
			group.PATCH(r.Path, r.Handlers()...)
		case rest.DELETE:
			group.DELETE(r.Path, r.Handlers()...)
		default:
			log.Warnf("Unrecognized HTTP method: %s", r.Method)
		}
	}

	return router
}

func (a *AppBuilder[T, U]) Build() ApplicationInterface {
	return &Application{
		Logger:         a.Logger,
		Addr:           fmt.Sprintf("0.0.0.0:%d", a.Config.GetRestApiPort()),
		Conn:           a.conn,
		WorkerServices: a.workerServices,
		Engine:         a.engine,
		ShutdownHooks:  a.shutdownHooks,
	}
}
