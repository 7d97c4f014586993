package maven

import (
	"strings"
)

// Version 是按 Maven 制品版本规则可比较的版本号。解析规则：
//   - '.' 与 '-' 分隔元素，数字与字母之间的切换也视为分隔；
//   - '-' 与数字/字母切换会开启一层子列表；
//   - 已知限定符排序 alpha < beta < milestone < rc < snapshot < "" (ga/final/release) < sp，
//     未知限定符排在已知限定符之后并按字典序比较；
//   - 末尾的 0 与空限定符会被归一化掉，因此 1.0 == 1 == 1.0.0。
type Version struct {
	raw   string
	items listItem
}

// ParseVersion 解析版本号，任何字符串都能得到一个可比较的结果。
func ParseVersion(raw string) Version {
	return Version{raw: raw, items: parseItems(strings.ToLower(strings.TrimSpace(raw)))}
}

// String 返回原始版本字符串。
func (v Version) String() string {
	return v.raw
}

// Compare 返回 -1/0/1。
func (v Version) Compare(other Version) int {
	return v.items.compare(other.items)
}

// CompareVersions 比较两个版本字符串。
func CompareVersions(a, b string) int {
	return ParseVersion(a).Compare(ParseVersion(b))
}

type itemKind int

const (
	intKind itemKind = iota
	stringKind
	listKind
)

// item 是解析后的版本元素：数字、限定符或子列表。
type item interface {
	kind() itemKind
	isNull() bool
	// compare 中 other 为 nil 表示与"缺失元素"比较。
	compare(other item) int
}

// intItem 以去掉前导 0 的十进制字符串保存，支持任意长度。
type intItem string

func (i intItem) kind() itemKind { return intKind }
func (i intItem) isNull() bool   { return i == "" }

func (i intItem) compare(other item) int {
	if other == nil {
		if i.isNull() {
			return 0
		}
		return 1
	}
	switch o := other.(type) {
	case intItem:
		return compareDigits(string(i), string(o))
	case stringItem:
		return 1
	default:
		return 1
	}
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

var qualifierOrder = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var qualifierAliases = map[string]string{
	"ga":      "",
	"final":   "",
	"release": "",
	"cr":      "rc",
}

// releaseQualifierIndex 是空限定符（正式版）的可比较形式。
var releaseQualifierIndex = comparableQualifier("")

type stringItem string

func newStringItem(value string, followedByDigit bool) stringItem {
	if followedByDigit && len(value) == 1 {
		switch value {
		case "a":
			value = "alpha"
		case "b":
			value = "beta"
		case "m":
			value = "milestone"
		}
	}
	if alias, ok := qualifierAliases[value]; ok {
		value = alias
	}
	return stringItem(value)
}

func (s stringItem) kind() itemKind { return stringKind }
func (s stringItem) isNull() bool   { return s == "" }

func (s stringItem) compare(other item) int {
	if other == nil {
		return strings.Compare(comparableQualifier(string(s)), releaseQualifierIndex)
	}
	switch o := other.(type) {
	case intItem:
		return -1
	case stringItem:
		return strings.Compare(comparableQualifier(string(s)), comparableQualifier(string(o)))
	default:
		return -1
	}
}

// comparableQualifier 将已知限定符映射为其序号，未知限定符映射为 "<len>-<q>"，
// 从而整体排在已知限定符之后。
func comparableQualifier(q string) string {
	for i, known := range qualifierOrder {
		if known == q {
			return string(rune('0' + i))
		}
	}
	return string(rune('0'+len(qualifierOrder))) + "-" + q
}

type listItem []item

func (l listItem) kind() itemKind { return listKind }
func (l listItem) isNull() bool   { return len(l) == 0 }

func (l listItem) compare(other item) int {
	if other == nil {
		if len(l) == 0 {
			return 0
		}
		return l[0].compare(nil)
	}
	switch o := other.(type) {
	case intItem:
		return -1
	case stringItem:
		return 1
	case listItem:
		for i := 0; i < len(l) || i < len(o); i++ {
			var left, right item
			if i < len(l) {
				left = l[i]
			}
			if i < len(o) {
				right = o[i]
			}
			var result int
			if left == nil {
				if right != nil {
					result = -right.compare(nil)
				}
			} else {
				result = left.compare(right)
			}
			if result != 0 {
				return result
			}
		}
		return 0
	}
	return 0
}

// normalize 从尾部移除空元素，遇到非列表的非空元素即停止。
func (l listItem) normalize() listItem {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].isNull() {
			l = append(l[:i], l[i+1:]...)
			continue
		}
		if l[i].kind() != listKind {
			break
		}
	}
	return l
}

// listBuilder 以栈的方式构建嵌套列表，子列表在父列表中占位，收尾时统一归一化。
type listBuilder struct {
	items    []item
	children []*listBuilder
	// childAt 记录子列表在 items 中的位置。
	childAt []int
}

func (b *listBuilder) add(it item) {
	b.items = append(b.items, it)
}

func (b *listBuilder) addChild() *listBuilder {
	child := &listBuilder{}
	b.childAt = append(b.childAt, len(b.items))
	b.children = append(b.children, child)
	b.items = append(b.items, nil)
	return child
}

func (b *listBuilder) build() listItem {
	for i, child := range b.children {
		b.items[b.childAt[i]] = child.build()
	}
	return listItem(b.items).normalize()
}

func parseItems(version string) listItem {
	root := &listBuilder{}
	list := root
	isDigit := false
	start := 0

	for i := 0; i < len(version); i++ {
		c := version[i]
		switch {
		case c == '.':
			if i == start {
				list.add(intItem(""))
			} else {
				list.add(parseItem(isDigit, version[start:i]))
			}
			start = i + 1
		case c == '-':
			if i == start {
				list.add(intItem(""))
			} else {
				list.add(parseItem(isDigit, version[start:i]))
			}
			start = i + 1
			list = list.addChild()
		case c >= '0' && c <= '9':
			if !isDigit && i > start {
				list.add(newStringItem(version[start:i], true))
				start = i
				list = list.addChild()
			}
			isDigit = true
		default:
			if isDigit && i > start {
				list.add(parseItem(true, version[start:i]))
				start = i
				list = list.addChild()
			}
			isDigit = false
		}
	}
	if len(version) > start {
		list.add(parseItem(isDigit, version[start:]))
	}
	return root.build()
}

func parseItem(isDigit bool, buf string) item {
	if isDigit {
		return intItem(strings.TrimLeft(buf, "0"))
	}
	return newStringItem(buf, false)
}
