package di

import (
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/application/sagas"
	"artion-backend/infrastructure/config"
	"artion-backend/infrastructure/observability"
	"artion-backend/interfaces/http/rest"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Tracer    *observability.TracerProvider
	Collector *observability.Collector
	Orphans   ports.OrphanStore
	Publisher ports.EventPublisher
	Registry  *sagas.Registry
	Router    *rest.Router
}
