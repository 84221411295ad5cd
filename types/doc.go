// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package types 提供 Convergio 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、cmd 等上层
模块提供统一的对话类型契约，避免循环依赖。

# 核心类型

  - TurnRecord - 对话历史中的一轮发言（turn、agent、content）
  - Role       - 发言方角色（user / agent / system）

# 主要能力

  - 历史切片：LastTurns / Speakers
  - 松散输入转换：TurnFromMap（缺失字段按零值处理）
  - Context 传播：WithTraceID / WithUserID / WithConversationID / WithAgentName
*/
package types
