package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"raid-loot/backend/config"
	"raid-loot/backend/internal/model"
)

// GearListSource 外部配装清单来源
type GearListSource interface {
	// Fetch 获取链接对应的一套配装（全部未获取）
	Fetch(ctx context.Context, link GearLink) (model.GearList, error)
	// PageURL 链接对应的人类可读页面
	PageURL(link GearLink) string
}

// ── xivgear 接口结构 ──

type sheetItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name,omitempty"`
	ItemType string `json:"itemType,omitempty"`
	Source   string `json:"source,omitempty"`
}

type sheetSet struct {
	Name  string               `json:"name"`
	Items map[string]sheetItem `json:"items"`
}

// sheetResponse 多套清单带 sets；单套短链直接在顶层给出 items
type sheetResponse struct {
	Name  string               `json:"name"`
	Sets  []sheetSet           `json:"sets"`
	Items map[string]sheetItem `json:"items"`
}

const pageBodyLimit = 2 << 20

type xivGearSource struct {
	api        *resty.Client
	bis        *resty.Client
	page       *resty.Client
	pageBase   string
	classifier *ItemClassifier
	timeout    time.Duration // 单次导入（含重试与配套页面）的总时限
	logger     *zap.Logger
}

// NewGearListSource 创建基于 resty 的外部清单客户端（超时与重试均有界）
func NewGearListSource(cfg *config.GearConfig, logger *zap.Logger) GearListSource {
	logger = logger.Named("gearlist")
	restyLogger := logger.Sugar()
	newClient := func(base string) *resty.Client {
		return resty.New().
			SetLogger(restyLogger).
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(cfg.FetchTimeout).
			SetRetryCount(cfg.RetryCount).
			SetHeader("Accept", "application/json").
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
	}
	page := resty.New().
		SetLogger(restyLogger).
		SetBaseURL(strings.TrimRight(cfg.PageBaseURL, "/")).
		SetTimeout(cfg.FetchTimeout).
		SetHeader("Accept", "text/html")

	return &xivGearSource{
		api:        newClient(cfg.APIBaseURL),
		bis:        newClient(cfg.BisBaseURL),
		page:       page,
		pageBase:   strings.TrimRight(cfg.PageBaseURL, "/"),
		classifier: NewItemClassifier(cfg.TomeKeywords, cfg.RaidKeywords),
		timeout:    cfg.FetchTimeout,
		logger:     logger,
	}
}

func (s *xivGearSource) PageURL(link GearLink) string {
	u := s.pageBase + "/?page=" + link.Page()
	if link.SetIndex > 0 {
		u += fmt.Sprintf("&selectedIndex=%d", link.SetIndex)
	}
	return u
}

func (s *xivGearSource) Fetch(ctx context.Context, link GearLink) (model.GearList, error) {
	var req *resty.Request
	var path string
	switch link.Kind {
	case GearLinkShort:
		req, path = s.api.R(), "/shortlink/"+link.ShortID
	case GearLinkBis:
		req, path = s.bis.R(), "/"+link.Job+"/"+link.Category+".json"
	default:
		return nil, ErrInvalidLink
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := req.SetContext(ctx).Get(path)
	if err != nil {
		s.logger.Warn("获取配装清单失败", zap.String("link", link.Canonical()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: 清单不存在", ErrInvalidLink)
	case resp.IsError():
		s.logger.Warn("配装清单接口返回错误",
			zap.String("link", link.Canonical()),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode())
	}

	var sheet sheetResponse
	if err := json.Unmarshal(resp.Body(), &sheet); err != nil {
		return nil, fmt.Errorf("%w: 响应格式无法解析", ErrUpstreamFailure)
	}

	items, err := selectSet(&sheet, link.SetIndex)
	if err != nil {
		return nil, err
	}

	return s.buildGearList(ctx, link, items), nil
}

func selectSet(sheet *sheetResponse, index int) (map[string]sheetItem, error) {
	if len(sheet.Sets) == 0 {
		if index == 0 && len(sheet.Items) > 0 {
			return sheet.Items, nil
		}
		return nil, fmt.Errorf("%w: 清单中没有配装", ErrInvalidLink)
	}
	if index >= len(sheet.Sets) {
		return nil, fmt.Errorf("%w: 配装序号 %d 超出范围（共 %d 套）", ErrInvalidLink, index, len(sheet.Sets))
	}
	return sheet.Sets[index].Items, nil
}

// buildGearList 按固定槽位顺序组装，逐槽位走类型判定链
func (s *xivGearSource) buildGearList(ctx context.Context, link GearLink, raw map[string]sheetItem) model.GearList {
	bySlot := make(map[model.GearSlot]sheetItem, len(raw))
	for name, it := range raw {
		if slot, ok := normalizeSlot(name); ok {
			bySlot[slot] = it
		}
	}

	var page map[model.GearSlot]pageItem
	needPage := false
	for _, it := range bySlot {
		if it.Name == "" || (it.ItemType == "" && it.Source == "") {
			needPage = true
			break
		}
	}
	if needPage {
		page = s.fetchPage(ctx, link)
	}

	list := make(model.GearList, 0, len(bySlot))
	for _, slot := range model.AllSlots {
		it, ok := bySlot[slot]
		if !ok {
			continue
		}
		p := page[slot]

		name := it.Name
		if name == "" {
			name = p.Name
		}
		if name == "" {
			name = fmt.Sprintf("Item #%d", it.ID)
		}

		list = append(list, model.GearItem{
			Slot:     slot,
			ItemName: name,
			ItemType: s.classify(it, p, name),
		})
	}
	return list
}

func (s *xivGearSource) classify(it sheetItem, p pageItem, name string) model.ItemType {
	if t, ok := parseSourceLabel(it.ItemType); ok {
		return t
	}
	if t, ok := parseSourceLabel(it.Source); ok {
		return t
	}
	if p.Type != "" {
		return p.Type
	}
	if t, ok := s.classifier.ClassifyName(name); ok {
		return t
	}
	return model.ItemTypeRaid
}

// fetchPage 尽力抓取配套页面；任何失败只记日志，返回空映射
func (s *xivGearSource) fetchPage(ctx context.Context, link GearLink) map[model.GearSlot]pageItem {
	req := s.page.R().SetContext(ctx).SetQueryParam("page", link.Page())
	if link.SetIndex > 0 {
		req.SetQueryParam("selectedIndex", fmt.Sprint(link.SetIndex))
	}
	resp, err := req.Get("/")
	if err != nil || resp.IsError() {
		s.logger.Debug("配套页面不可用，改用关键词判定", zap.String("link", link.Canonical()), zap.Error(err))
		return nil
	}
	body := resp.Body()
	if len(body) > pageBodyLimit {
		body = body[:pageBodyLimit]
	}
	items, err := parseGearPage(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("配套页面解析失败", zap.String("link", link.Canonical()), zap.Error(err))
		return nil
	}
	return items
}
