package redis

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回 Redis 配置器
// 每个客户端以 "redis.<name>" 注册为 bean，连接在第一次被请求时建立。
// 名为 "default" 的客户端同时获得别名 "redis"。
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		if len(builder.errors) > 0 {
			ctx.GetLogger().Fatal("Failed to build redis clients",
				logging.Field{Key: "error", Value: fmt.Sprintf("%v", builder.errors)})
		}

		for _, opts := range builder.configs {
			opts := opts
			beanName := "redis." + opts.Name

			ctx.RegisterBean(beanName, &beans.BeanDefinition{
				FactoryFn: func() (*goredis.Client, error) {
					return openClient(opts)
				},
				DestroyFunc: func(bean any) error {
					ctx.GetLogger().Info("Closing redis client",
						logging.Field{Key: "name", Value: opts.Name})
					return bean.(*goredis.Client).Close()
				},
				LazyInit:            true,
				ResourceDescription: "configure/redis",
			})

			ctx.GetLogger().Info("Redis client bean registered",
				logging.Field{Key: "bean", Value: beanName},
				logging.Field{Key: "addr", Value: opts.Addr},
				logging.Field{Key: "db", Value: opts.DB})

			// 默认实例兼容性
			if opts.Name == "default" {
				if err := ctx.Factory().RegisterAlias(beanName, "redis"); err != nil {
					ctx.GetLogger().Warn("Failed to register default redis alias",
						logging.Field{Key: "error", Value: err.Error()})
				}
			}
		}
	}
}
