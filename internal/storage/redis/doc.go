// Package redis 把工具调用记录写入 Redis list，供其它进程按最近顺序读取。
package redis
