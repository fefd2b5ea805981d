package core

import "fmt"

// Extension 定义应用程序扩展的基础接口
// 扩展模块应该实现 AppConfigurator 接口
type Extension interface {
	// Name 返回扩展的名称，用于日志记录和调试
	Name() string
}

// AppConfigurator 负责配置应用程序构建上下文
// 对应应用程序启动的 Configure 阶段，用于注册 Bean、添加托管服务等
type AppConfigurator interface {
	// ConfigureBuilder 在此方法中配置构建上下文
	ConfigureBuilder(ctx *BuildContext)
}

// validateExtension 验证扩展是否实现了支持的接口
// 如果未实现任何支持的接口，将 panic
func validateExtension(ext Extension) {
	if _, ok := ext.(AppConfigurator); !ok {
		panic(fmt.Sprintf("app: Extension '%s' does not implement core.AppConfigurator. \n"+
			"Check if your method signatures exactly match the interface definition.", ext.Name()))
	}
}
