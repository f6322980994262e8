// Package main 启动 fastlink
package main

import (
	"os"

	"github.com/yeisme/fastlink/pkg/cmd"
)

//	@title			fastlink API
//	@version		1.0
//	@description	fastlink origin：带访问码的文件下载、Range 流式传输与管理接口。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
