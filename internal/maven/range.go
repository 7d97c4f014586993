package maven

import (
	"fmt"
	"strings"
)

// Restriction 是版本区间中的一段，nil 边界表示无界。
type Restriction struct {
	Lower          *Version
	LowerInclusive bool
	Upper          *Version
	UpperInclusive bool
}

// Contains 判断版本是否落在该段区间内。
func (r Restriction) Contains(v Version) bool {
	if r.Lower != nil {
		cmp := r.Lower.Compare(v)
		if cmp > 0 || (cmp == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != nil {
		cmp := r.Upper.Compare(v)
		if cmp < 0 || (cmp == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

// VersionRange 对应 Maven 的版本范围表达式，例如 "[1.0,2.0)"、"(,1.0],[1.2,)"，
// 或不带括号的推荐版本 "1.0"（不限制候选版本）。
type VersionRange struct {
	spec         string
	recommended  *Version
	restrictions []Restriction
}

// ParseVersionRange 解析版本范围表达式。
func ParseVersionRange(spec string) (*VersionRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty version range")
	}

	vr := &VersionRange{spec: spec}
	process := spec
	var upperBound *Version

	for strings.HasPrefix(process, "[") || strings.HasPrefix(process, "(") {
		index1 := strings.Index(process, ")")
		index2 := strings.Index(process, "]")
		index := index2
		if index2 < 0 || (index1 >= 0 && index1 < index2) {
			index = index1
		}
		if index < 0 {
			return nil, fmt.Errorf("unbounded range: %s", spec)
		}

		restriction, err := parseRestriction(process[:index+1])
		if err != nil {
			return nil, err
		}
		if upperBound != nil && (restriction.Lower == nil || restriction.Lower.Compare(*upperBound) < 0) {
			return nil, fmt.Errorf("ranges overlap: %s", spec)
		}
		vr.restrictions = append(vr.restrictions, restriction)
		upperBound = restriction.Upper

		process = strings.TrimSpace(process[index+1:])
		if strings.HasPrefix(process, ",") {
			process = strings.TrimSpace(process[1:])
		}
	}

	if process != "" {
		if len(vr.restrictions) > 0 {
			return nil, fmt.Errorf("only fully-qualified sets allowed in multiple set scenario: %s", spec)
		}
		recommended := ParseVersion(process)
		vr.recommended = &recommended
		vr.restrictions = append(vr.restrictions, Restriction{})
	}
	return vr, nil
}

func parseRestriction(spec string) (Restriction, error) {
	lowerInclusive := strings.HasPrefix(spec, "[")
	upperInclusive := strings.HasSuffix(spec, "]")
	process := strings.TrimSpace(spec[1 : len(spec)-1])

	index := strings.Index(process, ",")
	if index < 0 {
		if !lowerInclusive || !upperInclusive {
			return Restriction{}, fmt.Errorf("single version must be surrounded by []: %s", spec)
		}
		v := ParseVersion(process)
		return Restriction{Lower: &v, LowerInclusive: true, Upper: &v, UpperInclusive: true}, nil
	}

	lower := strings.TrimSpace(process[:index])
	upper := strings.TrimSpace(process[index+1:])
	if lower == upper {
		return Restriction{}, fmt.Errorf("range cannot have identical boundaries: %s", spec)
	}

	r := Restriction{LowerInclusive: lowerInclusive, UpperInclusive: upperInclusive}
	if lower != "" {
		v := ParseVersion(lower)
		r.Lower = &v
	}
	if upper != "" {
		v := ParseVersion(upper)
		r.Upper = &v
	}
	if r.Lower != nil && r.Upper != nil && r.Upper.Compare(*r.Lower) < 0 {
		return Restriction{}, fmt.Errorf("range defies version ordering: %s", spec)
	}
	return r, nil
}

// String 返回原始表达式。
func (vr *VersionRange) String() string {
	return vr.spec
}

// Recommended 返回无括号表达式中的推荐版本。
func (vr *VersionRange) Recommended() (Version, bool) {
	if vr.recommended == nil {
		return Version{}, false
	}
	return *vr.recommended, true
}

// Contains 判断版本是否落在任一区间段中。
func (vr *VersionRange) Contains(version string) bool {
	v := ParseVersion(version)
	for _, r := range vr.restrictions {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Match 返回候选中落在范围内的最高版本。
func (vr *VersionRange) Match(candidates []string) (string, bool) {
	var (
		best    string
		bestVer Version
		found   bool
	)
	for _, c := range candidates {
		if !vr.Contains(c) {
			continue
		}
		v := ParseVersion(c)
		if !found || v.Compare(bestVer) > 0 {
			best, bestVer, found = c, v, true
		}
	}
	return best, found
}
