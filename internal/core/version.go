package core

// 构建信息, 通过 -ldflags "-X github.com/RecoveryAshes/urlwatcher/internal/core.Version=..." 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)
