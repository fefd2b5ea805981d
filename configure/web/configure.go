package web

import (
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLogger())
		if options != nil {
			options(builder)
		}

		// 构建 Web Host
		// 控制器注册到容器，路由在主机启动时按类型发现并挂载
		webHost := builder.Build(ctx.Factory())

		// 直接添加到托管服务列表
		ctx.AddHostedService(webHost)

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "port", Value: webHost.port})
	}
}
