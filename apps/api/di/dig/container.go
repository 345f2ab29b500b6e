package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/cshub/apps/api/echo"
	"github.com/trezcool/cshub/core"
	"github.com/trezcool/cshub/core/auth"
	"github.com/trezcool/cshub/core/rbac"
	"github.com/trezcool/cshub/core/user"
	logsvc "github.com/trezcool/cshub/services/logger"
	"github.com/trezcool/cshub/storage/cache"
	"github.com/trezcool/cshub/storage/database"
	inmemdb "github.com/trezcool/cshub/storage/database/inmem"
	sqlxrepos "github.com/trezcool/cshub/storage/database/sqlx"
)

const (
	engineMemory = "memory"
	engineRedis  = "redis"

	dbSetUpTimeout = 30 * time.Second
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.ServiceInterface
	Verifier   *auth.Verifier
	Authorizer *rbac.Authorizer
	Validate   *validator.Validate
	Translator ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB returns nil when the in-memory database engine is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == engineMemory {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), dbSetUpTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepository(db *sqlx.DB) user.Repository {
	if db == nil {
		return inmemdb.NewRepository(inmemdb.NewDB())
	}
	return sqlxrepos.NewRepository(db)
}

func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Cache.Engine == engineRedis {
		client, err := cache.NewRedisClient(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		return cache.NewRedis(client, conf.Cache.TTL)
	}
	return cache.NewLRU(conf.Cache.Size, conf.Cache.TTL)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		Verifier:   p.Verifier,
		Authorizer: p.Authorizer,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepository))
	must(c.Provide(newCache))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(auth.NewVerifier))
	must(c.Provide(rbac.NewAuthorizer))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
