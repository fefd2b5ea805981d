package etcd

import (
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回 Etcd 配置器
// 每个客户端以 "etcd.<name>" 注册为 bean，名为 "default" 的客户端
// 同时获得别名 "etcd"。
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		if len(builder.errors) > 0 {
			ctx.GetLogger().Fatal("Failed to build etcd clients",
				logging.Field{Key: "error", Value: fmt.Sprintf("%v", builder.errors)})
		}

		for _, name := range builder.order {
			opts := builder.configs[name]
			beanName := "etcd." + name

			ctx.RegisterBean(beanName, &beans.BeanDefinition{
				FactoryFn: func() (*clientv3.Client, error) {
					return openClient(opts)
				},
				DestroyFunc: func(bean any) error {
					ctx.GetLogger().Info("Closing etcd client",
						logging.Field{Key: "name", Value: opts.Name})
					return bean.(*clientv3.Client).Close()
				},
				LazyInit:            true,
				ResourceDescription: "configure/etcd",
			})

			ctx.GetLogger().Info("Etcd client bean registered",
				logging.Field{Key: "bean", Value: beanName},
				logging.Field{Key: "endpoints", Value: fmt.Sprintf("%v", opts.Endpoints)})

			// 默认实例兼容性
			if name == "default" {
				if err := ctx.Factory().RegisterAlias(beanName, "etcd"); err != nil {
					ctx.GetLogger().Warn("Failed to register default etcd alias",
						logging.Field{Key: "error", Value: err.Error()})
				}
			}
		}
	}
}
