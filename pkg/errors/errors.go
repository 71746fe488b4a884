package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：成员装备记录已被其他写入修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicateDrop 唯一索引冲突：同一周同一层的掉落已有未撤销的分配
var ErrDuplicateDrop = errors.New("该掉落已被分配")
