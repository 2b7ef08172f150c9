package order

import (
	"github.com/smallbiznis/rentbill/internal/order/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("order.provider",
	fx.Provide(repository.NewProvider),
)
