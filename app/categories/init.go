package categories

import (
	"gorm.io/gorm"

	"github.com/joefazee/categorias/internal/logger"
)

// Dependencies represent the dependencies needed for the categories module
type Dependencies struct {
	DB     *gorm.DB
	Config Config
	Logger logger.Logger
}

// Init selects the configured backend and wires the service on top of it
func Init(deps Dependencies) (Service, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}

	var log logger.Logger = logger.NewNullLogger()
	if deps.Logger != nil {
		log = deps.Logger.With(logger.Fields{"component": "categories"})
	}

	var repo Repository
	switch deps.Config.Backend {
	case BackendMemory:
		repo = NewMemoryRepository()
	default:
		if deps.DB == nil {
			return nil, ErrMissingDatabaseHandle
		}
		repo = NewRepository(deps.DB)
	}

	log.Info("categories module initialised", map[string]interface{}{
		"backend":       deps.Config.Backend,
		"remove_policy": string(deps.Config.RemovePolicy),
	})
	return NewService(repo, deps.Config, WithLogger(log)), nil
}
