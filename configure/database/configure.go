package database

import (
	"fmt"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回数据库配置器
// 每个数据库以 "database.<name>" 注册为工厂 bean，对外暴露 *gorm.DB。
// 连接在第一次被请求时建立，容器关闭时自动断开。
// 名为 "default" 的数据库同时获得别名 "database"。
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		if len(builder.errors) > 0 {
			ctx.GetLogger().Fatal("Failed to build databases",
				logging.Field{Key: "error", Value: fmt.Sprintf("%v", builder.errors)})
		}

		for _, name := range builder.order {
			opts := builder.configs[name]
			factory := &connectionFactory{opts: opts, logger: ctx.GetLogger()}

			beanName := "database." + name
			ctx.RegisterBean(beanName, &beans.BeanDefinition{
				FactoryFn: func() *connectionFactory { return factory },
				DestroyFunc: func(bean any) error {
					ctx.GetLogger().Info("Closing database connection",
						logging.Field{Key: "name", Value: name})
					return bean.(*connectionFactory).close()
				},
				LazyInit:            true,
				ResourceDescription: "configure/database",
			})
			ctx.GetLogger().Info("Database bean registered",
				logging.Field{Key: "bean", Value: beanName})

			// 默认实例兼容性
			if name == "default" {
				if err := ctx.Factory().RegisterAlias(beanName, "database"); err != nil {
					ctx.GetLogger().Warn("Failed to register default database alias",
						logging.Field{Key: "error", Value: err.Error()})
				}
			}
		}
	}
}
