package service

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"raid-loot/backend/internal/model"
)

// ── 物品类型判定 ──
//
// 判定链：接口字段 → 配套页面解析 → 名称关键词 → 默认零式掉落

// 默认关键词表（可通过 gear.tome_keywords / gear.raid_keywords 覆盖），每次返回新切片

func defaultTomeKeywords() []string {
	return []string{
		"augmented", "aug.", "credendum", "rinascita", "quetzalli", "historia", "neo kingdom",
	}
}

func defaultRaidKeywords() []string {
	return []string{
		"ascension", "babyface champion", "dark horse champion", "anabaseios", "abyssos", "asphodelos", "pandaemonium",
	}
}

// ItemClassifier 根据物品名判定来源类型；构造后不可变
type ItemClassifier struct {
	tome []string
	raid []string
}

// NewItemClassifier 创建分类器；传入空表时使用默认表
func NewItemClassifier(tome, raid []string) *ItemClassifier {
	if len(tome) == 0 {
		tome = defaultTomeKeywords()
	}
	if len(raid) == 0 {
		raid = defaultRaidKeywords()
	}
	return &ItemClassifier{tome: lowerAll(tome), raid: lowerAll(raid)}
}

// ClassifyName 名称关键词判定；无法判定时 ok = false
func (c *ItemClassifier) ClassifyName(name string) (model.ItemType, bool) {
	n := strings.ToLower(name)
	if n == "" {
		return "", false
	}
	for _, kw := range c.tome {
		if strings.Contains(n, kw) {
			return model.ItemTypeAugmentedTome, true
		}
	}
	for _, kw := range c.raid {
		if strings.Contains(n, kw) {
			return model.ItemTypeRaid, true
		}
	}
	return "", false
}

// parseSourceLabel 解析接口或页面给出的来源字段
func parseSourceLabel(s string) (model.ItemType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", false
	case strings.Contains(s, "tome"), strings.Contains(s, "augment"):
		return model.ItemTypeAugmentedTome, true
	case strings.Contains(s, "raid"), strings.Contains(s, "savage"):
		return model.ItemTypeRaid, true
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ── 配套页面解析 ──

// pageItem 页面中解析出的单个槽位信息
type pageItem struct {
	Name string
	Type model.ItemType // 空串表示页面未给出
}

// slotAliases 页面/接口中的槽位名 → 标准槽位
var slotAliases = map[string]model.GearSlot{
	"weapon": model.SlotWeapon, "mainhand": model.SlotWeapon,
	"head": model.SlotHead,
	"body": model.SlotBody, "chest": model.SlotBody,
	"hand": model.SlotHand, "hands": model.SlotHand,
	"legs": model.SlotLegs,
	"feet": model.SlotFeet,
	"ears": model.SlotEars, "earrings": model.SlotEars,
	"neck": model.SlotNeck, "necklace": model.SlotNeck,
	"wrist": model.SlotWrist, "wrists": model.SlotWrist, "bracelet": model.SlotWrist, "bracelets": model.SlotWrist,
	"ringleft": model.SlotLeftRing, "leftring": model.SlotLeftRing, "ring1": model.SlotLeftRing, "left ring": model.SlotLeftRing,
	"ringright": model.SlotRightRing, "rightring": model.SlotRightRing, "ring2": model.SlotRightRing, "right ring": model.SlotRightRing,
}

// normalizeSlot 将外部槽位名映射为标准槽位（未知槽位如副手返回 false）
func normalizeSlot(name string) (model.GearSlot, bool) {
	slot, ok := slotAliases[strings.ToLower(strings.TrimSpace(name))]
	return slot, ok
}

// parseGearPage 从配套 HTML 页面提取槽位 → 名称/类型
//
// 识别两种结构：
//   - 带 data-slot 属性的元素（data-item-name / data-item-type / data-source，缺省取文本）
//   - 表格行：第一列槽位名，第二列物品名，可选第三列来源
func parseGearPage(r io.Reader) (map[model.GearSlot]pageItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	out := make(map[model.GearSlot]pageItem)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if slotName := attr(n, "data-slot"); slotName != "" {
				if slot, ok := normalizeSlot(slotName); ok {
					item := pageItem{Name: attr(n, "data-item-name")}
					if item.Name == "" {
						item.Name = textContent(n)
					}
					src := attr(n, "data-item-type")
					if src == "" {
						src = attr(n, "data-source")
					}
					item.Type, _ = parseSourceLabel(src)
					mergePageItem(out, slot, item)
				}
				return
			}
			if n.Data == "tr" {
				if slot, item, ok := parseRow(n); ok {
					mergePageItem(out, slot, item)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func parseRow(tr *html.Node) (model.GearSlot, pageItem, bool) {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, textContent(c))
		}
	}
	if len(cells) < 2 {
		return "", pageItem{}, false
	}
	slot, ok := normalizeSlot(cells[0])
	if !ok {
		return "", pageItem{}, false
	}
	item := pageItem{Name: cells[1]}
	if len(cells) > 2 {
		item.Type, _ = parseSourceLabel(cells[2])
	}
	return slot, item, true
}

// mergePageItem 同一槽位重复出现时保留先出现的非空字段
func mergePageItem(out map[model.GearSlot]pageItem, slot model.GearSlot, item pageItem) {
	prev, ok := out[slot]
	if !ok {
		out[slot] = item
		return
	}
	if prev.Name == "" {
		prev.Name = item.Name
	}
	if prev.Type == "" {
		prev.Type = item.Type
	}
	out[slot] = prev
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
