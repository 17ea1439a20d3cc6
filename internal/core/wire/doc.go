// Package wire 实现 DataPack 的二进制线上格式
//
// 一个 DataPack 对应一次传输层写入，布局如下：
//
//	uvarint count
//	count × {
//	    uvarint len | 类型标识
//	    byte        | 编码方式（0=原生, 1=protobuf, 2=JSON 回退）
//	    uvarint len | 编码体
//	}
//
// 实现 Serializable 的对象使用原生二进制编码，实现 proto.Message 的对象
// 使用 protobuf 编码，其余对象交给回退编解码器（默认 JSON）。
//
// 解码是全有或全无的：任何一个条目损坏，整个数据包都视为丢失，
// 不会返回部分结果。解码得到的对象总是指针（*T）。
package wire
