// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
包 server 管理 Convergio HTTP 服务的生命周期：非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：封装 net/http.Server，提供 Start/Shutdown/WaitForShutdown。
  - Config：监听地址与各项超时，可由 config.ServerConfig 通过 ConfigFrom 生成。

写超时需大于单次群聊超时，否则 /api/v1/conversations 会在群聊结束前被切断。
*/
package server
