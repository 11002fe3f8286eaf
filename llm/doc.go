// Package llm 定义群聊编排所依赖的模型能力接口。
//
// 编排核心将模型提供方视为黑盒：Provider 负责「prompt + context → 文本」，
// ThreadClient 负责服务端会话线程（创建/投递/执行/列取）。具体厂商客户端
// 由调用方注入，本包不包含任何网络实现。
package llm
