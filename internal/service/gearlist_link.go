package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ── 外部配装清单链接 ──
//
// 支持两种形态：
//   - 短链：https://xivgear.app/?page=sl|<uuid>、sl|<uuid> 或裸 uuid
//   - 职业/分类：https://xivgear.app/?page=bis|<job>|<category>、bis|<job>|<category>
//
// 可选 selectedIndex / onlySetIndex 参数选择清单中的第几套（默认 0）。
// 规范化标识 sl|<uuid>[#n] / bis|<job>|<category>[#n] 即链接状态缓存的键。

var (
	ErrInvalidLink     = errors.New("配装链接无效")
	ErrUpstreamFailure = errors.New("获取外部配装清单失败")
)

// GearLinkKind 链接形态
type GearLinkKind string

const (
	GearLinkShort GearLinkKind = "sl"
	GearLinkBis   GearLinkKind = "bis"
)

// GearLink 解析后的外部清单链接
type GearLink struct {
	Kind     GearLinkKind
	ShortID  string // Kind = sl
	Job      string // Kind = bis
	Category string // Kind = bis
	SetIndex int
}

// Page 对应 xivgear 页面的 page 参数
func (l GearLink) Page() string {
	if l.Kind == GearLinkShort {
		return "sl|" + l.ShortID
	}
	return "bis|" + l.Job + "|" + l.Category
}

// Canonical 规范化标识
func (l GearLink) Canonical() string {
	if l.SetIndex > 0 {
		return l.Page() + "#" + strconv.Itoa(l.SetIndex)
	}
	return l.Page()
}

// ParseGearLink 解析用户输入的链接或已保存的规范化标识
func ParseGearLink(raw string) (GearLink, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GearLink{}, fmt.Errorf("%w: 链接为空", ErrInvalidLink)
	}

	page := raw
	index := 0

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return GearLink{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
		}
		q := u.Query()
		page = q.Get("page")
		if page == "" {
			return GearLink{}, fmt.Errorf("%w: 缺少 page 参数", ErrInvalidLink)
		}
		for _, key := range []string{"selectedIndex", "onlySetIndex"} {
			if v := q.Get(key); v != "" {
				n, err := parseSetIndex(v)
				if err != nil {
					return GearLink{}, err
				}
				index = n
				break
			}
		}
	} else if hash := strings.LastIndex(raw, "#"); hash >= 0 {
		n, err := parseSetIndex(raw[hash+1:])
		if err != nil {
			return GearLink{}, err
		}
		page, index = raw[:hash], n
	}

	link, err := parsePage(page)
	if err != nil {
		return GearLink{}, err
	}
	link.SetIndex = index
	return link, nil
}

func parsePage(page string) (GearLink, error) {
	parts := strings.Split(page, "|")
	switch {
	case len(parts) == 1:
		if _, err := uuid.Parse(parts[0]); err != nil {
			return GearLink{}, fmt.Errorf("%w: 无法识别的链接 %q", ErrInvalidLink, page)
		}
		return GearLink{Kind: GearLinkShort, ShortID: strings.ToLower(parts[0])}, nil

	case len(parts) == 2 && parts[0] == string(GearLinkShort):
		if _, err := uuid.Parse(parts[1]); err != nil {
			return GearLink{}, fmt.Errorf("%w: 短链 ID 无效", ErrInvalidLink)
		}
		return GearLink{Kind: GearLinkShort, ShortID: strings.ToLower(parts[1])}, nil

	case len(parts) == 3 && parts[0] == string(GearLinkBis):
		job, category := strings.ToLower(parts[1]), parts[2]
		if !isPathToken(job) || !isPathToken(category) {
			return GearLink{}, fmt.Errorf("%w: 职业或分类无效", ErrInvalidLink)
		}
		return GearLink{Kind: GearLinkBis, Job: job, Category: category}, nil
	}
	return GearLink{}, fmt.Errorf("%w: 无法识别的链接 %q", ErrInvalidLink, page)
}

func parseSetIndex(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: 配装序号无效 %q", ErrInvalidLink, v)
	}
	return n, nil
}

// isPathToken 仅允许字母数字、下划线、连字符、点（拼接进 URL 路径）
func isPathToken(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}
