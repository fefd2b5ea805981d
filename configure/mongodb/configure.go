package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回 MongoDB 配置器
// 每个客户端以 "mongo.<name>" 注册为 bean，名为 "default" 的客户端
// 同时获得别名 "mongo"。容器关闭时自动断开连接。
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		if len(builder.errors) > 0 {
			ctx.GetLogger().Fatal("Failed to build mongodb clients",
				logging.Field{Key: "error", Value: fmt.Sprintf("%v", builder.errors)})
		}

		for _, name := range builder.order {
			opts := builder.configs[name]
			beanName := "mongo." + name

			ctx.RegisterBean(beanName, &beans.BeanDefinition{
				FactoryFn: func() (*mongo.Client, error) {
					return openClient(opts)
				},
				DestroyFunc: func(bean any) error {
					ctx.GetLogger().Info("Disconnecting mongo client",
						logging.Field{Key: "name", Value: opts.Name})
					disconnectCtx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
					defer cancel()
					return bean.(*mongo.Client).Disconnect(disconnectCtx)
				},
				LazyInit:            true,
				ResourceDescription: "configure/mongodb",
			})

			ctx.GetLogger().Info("Mongo client bean registered",
				logging.Field{Key: "bean", Value: beanName},
				logging.Field{Key: "uri", Value: opts.Uri})

			// 默认实例兼容性
			if name == "default" {
				if err := ctx.Factory().RegisterAlias(beanName, "mongo"); err != nil {
					ctx.GetLogger().Warn("Failed to register default mongo alias",
						logging.Field{Key: "error", Value: err.Error()})
				}
			}
		}
	}
}
