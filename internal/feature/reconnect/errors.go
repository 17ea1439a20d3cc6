package reconnect

import "errors"

// ErrNotConnector 宿主不能主动建立连接
var ErrNotConnector = errors.New("reconnect: owner cannot connect")
