// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
包 cache 提供两级缓存构件：进程内有界 LRU 与基于 Redis 的缓存管理器。

# 核心类型

  - LRU[V]：容量受限、可选 TTL 的本地缓存，读写与淘汰均为 O(1)，
    用于 turncontext 的每轮上下文缓存，避免进程内存无界增长。
  - Manager：封装 go-redis 客户端，提供 Get/Set/Delete
    以及有界列表 AppendBounded/Range，
    供 turncontext 二级缓存与 memory 事实存储使用。
  - Config：Redis 地址、键前缀、默认 TTL、连接池与健康检查参数。

# 错误语义

未命中返回 ErrCacheMiss（用 IsCacheMiss 判断），管理器关闭后
所有操作返回 ErrClosed。
*/
package cache
