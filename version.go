package rtsync

import "fmt"

// Version 当前版本
const Version = "v0.1.0"

// 构建时通过 -ldflags "-X" 注入
var (
	GitCommit string
	BuildDate string
)

// VersionInfo 返回单行版本描述
func VersionInfo() string {
	s := "rtsync " + Version
	if GitCommit != "" {
		s += fmt.Sprintf(" (commit %s)", GitCommit)
	}
	if BuildDate != "" {
		s += fmt.Sprintf(" built %s", BuildDate)
	}
	return s
}
