// Copyright (c) Convergio Authors.
// Licensed under the MIT License.

/*
Package conflict 检测群聊中不同轮次发言之间的立场冲突。

# 概述

Detector 对对话历史的最近 window 轮做两两扫描，若较早一轮包含
反义词对中的一个词、较晚一轮包含另一个词，则报告一条 Conflict。
匹配按单词边界进行且不区分大小写，因此 "on" 不会命中 "online"。

# 核心类型

  - TermPair：一对反义词，词表可通过 NewDetector 注入
  - Conflict：turns / terms / type / agents 四元组
  - Detector：构造后只读，并发安全的纯函数检测器

# 使用方式

	d := conflict.NewDetector(cfg.Conflict.TermPairs)
	for _, c := range d.Detect(history, cfg.Conflict.Window) {
	    logger.Info("conflict", zap.Ints("turns", c.Turns[:]))
	}
*/
package conflict
