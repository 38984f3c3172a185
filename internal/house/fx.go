package house

import (
	"github.com/smallbiznis/housebill/internal/house/repository"
	"github.com/smallbiznis/housebill/internal/house/service"
	"go.uber.org/fx"
)

var Module = fx.Module("house.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
