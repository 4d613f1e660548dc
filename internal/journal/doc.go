// Package journal 记录每一次工具调用，并把记录投递到内存、Redis、MySQL
// 或 RabbitMQ 等落地端。
package journal
