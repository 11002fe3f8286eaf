// Package groupchat 实现多 Agent 群聊编排核心。
//
// 编排器按固定顺序轮转参与者（round-robin），每个 Agent 的上下文依赖此前
// 全部输出（包括同一轮中更早的 Agent），因此单个会话内严格串行执行；
// 不同会话之间可以并发编排，共享的只有会话存储与线程注册表。
//
// 终止由 TerminationPolicy 决定：固定轮次，或 LLM 收敛评判（带最小响应
// 下限与硬上限兜底）。主循环结构性失败时降级为纯固定轮次模式重跑，
// 保留已收集的消息；调用方唯一会收到的错误是 NoAgentsAvailable。
package groupchat
