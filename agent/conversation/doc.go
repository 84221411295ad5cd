// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package conversation 编排多个 LLM agent 之间的群聊。

# 概述

GroupChat.Run 驱动一次完整的群聊：每一轮由 SpeakerSelector 选出
发言人，发言前通过 turncontext.Injector 注入检索上下文，回复成功后
决策才写入 selection.Recorder，回复追加到历史后交给 conflict.Detector
扫描立场冲突。
出现终止词、达到最大轮数、连续三次回复失败或超时时结束，并对会话
做一次质量评估。

# 核心接口

  - ConversationAgent：Name / Expertise / SystemPrompt / Reply
  - SpeakerSelector：决定下一轮发言人，返回打分依据

# 内置实现

  - LLMAgent：基于 llm.Completer 的 agent
  - RoundRobinSelector：按列表顺序轮流发言
  - ExpertiseSelector：专长关键词 0.6、发言间隔 0.25、点名 0.15 加权
  - KeyedMutex：同一会话 ID 串行，不同会话并行
  - GroupChatManager：保存最近的群聊结果

# 阶段与意图

MissionPhase 把轮次划分为 discovery / analysis / synthesis，
ClassifyIntent 把消息分为 question / decision_request /
analysis_request / statement，两者都记录在每条选择决策中。
*/
package conversation
