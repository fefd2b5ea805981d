package app

import (
	"github.com/gocrud/ioc/core"
)

// Run 构建并运行应用程序（阻塞直到收到退出信号）
// 这是最简入口，适合不需要自定义配置和日志的场景:
//
//	app.Run(
//	    configure.Web(func(b *web.Builder) { ... }),
//	    configure.Database(func(b *database.Builder) { ... }),
//	)
//
// 需要更多控制时请使用 app.NewApplicationBuilder。
func Run(configurators ...core.Configurator) error {
	builder := core.NewApplicationBuilder()
	for _, c := range configurators {
		builder.Configure(c)
	}
	return builder.Build().Run()
}
