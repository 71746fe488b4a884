package service

import (
	"errors"

	pkgerrors "raid-loot/backend/pkg/errors"
)

// Kind 业务错误类别，Handler 据此映射 HTTP 状态
type Kind int

const (
	KindInternal        Kind = iota
	KindNotFound             // 成员/分配/周次不存在
	KindInvalidInput         // 链接格式错误、层号越界、PIN 格式等
	KindConflict             // 已分配、已撤销、周次已存在
	KindNoMatchingItem       // 配装记录中没有对应条目
	KindUpstreamFailure      // 外部配装清单获取失败，可重试
	KindUnauthorized
	KindForbidden
)

// ── 跨模块共享错误 ──

var (
	ErrMemberNotFound   = errors.New("成员不存在")
	ErrWeekNotFound     = errors.New("周次不存在")
	ErrNoPermission     = errors.New("无权操作")
	ErrInvalidSpecType  = errors.New("配装类型无效")
	ErrInvalidSlot      = errors.New("装备槽位无效")
	ErrNoMatchingItem   = errors.New("配装记录中没有对应的装备")
	ErrWriteBusy        = errors.New("写操作繁忙，请稍后重试")
	ErrConcurrentUpdate = errors.New("成员数据已被其他操作修改，请刷新后重试")
)

var kinds = map[error]Kind{
	ErrMemberNotFound:   KindNotFound,
	ErrWeekNotFound:     KindNotFound,
	ErrNoPermission:     KindForbidden,
	ErrInvalidSpecType:  KindInvalidInput,
	ErrInvalidSlot:      KindInvalidInput,
	ErrNoMatchingItem:   KindNoMatchingItem,
	ErrWriteBusy:        KindConflict,
	ErrConcurrentUpdate: KindConflict,

	pkgerrors.ErrOptimisticLock: KindConflict,
	pkgerrors.ErrDuplicateDrop:  KindConflict,

	// auth
	ErrInvalidCredentials: KindUnauthorized,

	// member
	ErrMemberNameExists: KindConflict,
	ErrInvalidPIN:       KindInvalidInput,
	ErrInvalidRole:      KindInvalidInput,
	ErrMemberSelfDelete: KindConflict,
	ErrImportFileFormat: KindInvalidInput,

	// gear
	ErrInvalidLink:     KindInvalidInput,
	ErrUpstreamFailure: KindUpstreamFailure,
	ErrNotUpgradable:   KindInvalidInput,
	ErrMissingValue:    KindInvalidInput,

	// loot
	ErrInvalidFloor:       KindInvalidInput,
	ErrInvalidDrop:        KindInvalidInput,
	ErrDropNotOnFloor:     KindInvalidInput,
	ErrNoCurrentWeek:      KindConflict,
	ErrAlreadyAssigned:    KindConflict,
	ErrAssignmentNotFound: KindNotFound,
	ErrAlreadyUndone:      KindConflict,

	// week
	ErrWeekExists: KindConflict,

	// export
	ErrExportNoAssignments: KindNotFound,
	ErrExportGenerateFail:  KindInternal,
}

// KindOf 返回错误所属的业务类别；未登记的错误视为内部错误
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// persistErr 将乐观锁与唯一索引冲突转为面向调用方的业务错误
func persistErr(err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		return ErrConcurrentUpdate
	case errors.Is(err, pkgerrors.ErrDuplicateDrop):
		return ErrAlreadyAssigned
	}
	return err
}
