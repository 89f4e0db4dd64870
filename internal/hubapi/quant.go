// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hubapi

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// multipartRe matches the "-<k>-of-<n>" multi-part marker in a file stem.
var multipartRe = regexp.MustCompile(`-(\d+)-of-(\d+)`)

// quantLiterals lists the recognized literal quantization tags, checked
// before the prefix-based rules (Q/IQ/TQ<digit>).
var quantLiterals = []string{"BF16", "F16", "FP16", "FP32"}

// GroupQuantizations walks every content-format file in metadata's sibling
// list, tags it by quantization, groups multi-part files together, and
// returns groups sorted by total size descending.
func GroupQuantizations(meta ModelMetadata) []QuantizationGroup {
	groups := make(map[string]*QuantizationGroup)

	for _, f := range meta.Siblings {
		if !strings.HasSuffix(strings.ToLower(f.RFilename), ContentFormatExtension) {
			continue
		}
		tag := quantTag(f.RFilename)
		g, ok := groups[tag]
		if !ok {
			g = &QuantizationGroup{QuantType: tag}
			groups[tag] = g
		}
		g.Files = append(g.Files, f)
		if f.Size != nil {
			g.TotalSize += *f.Size
		}
	}

	out := make([]QuantizationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSize != out[j].TotalSize {
			return out[i].TotalSize > out[j].TotalSize
		}
		return out[i].QuantType < out[j].QuantType
	})
	return out
}

// quantTag determines a file's quantization tag: first from its own
// filename suffix (after the last '.' or '-'), then — if not found there —
// from its immediate parent directory name, applying the same rule.
func quantTag(rfilename string) string {
	base := path.Base(rfilename)
	stem := stripMultipartMarker(strings.TrimSuffix(base, path.Ext(base)))
	if tag, ok := tagFromSuffix(stem); ok {
		return tag
	}

	dir := path.Base(path.Dir(rfilename))
	if dir != "." && dir != "/" {
		if tag, ok := tagFromSuffix(stripMultipartMarker(dir)); ok {
			return tag
		}
		return dir
	}
	return "unknown"
}

func stripMultipartMarker(s string) string {
	return multipartRe.ReplaceAllString(s, "")
}

// tagFromSuffix inspects the segment after the last '.' or '-' in s and
// recognizes Q<digits>(_<variant>)?, IQ<digits>..., TQ<digit>..., or one of
// the fixed-width float literals.
func tagFromSuffix(s string) (string, bool) {
	lastSep := strings.LastIndexAny(s, ".-")
	suffix := s
	if lastSep >= 0 {
		suffix = s[lastSep+1:]
	}
	upper := strings.ToUpper(suffix)

	for _, lit := range quantLiterals {
		if upper == lit {
			return upper, true
		}
	}
	if strings.HasPrefix(upper, "MXFP") {
		return upper, true
	}
	if strings.HasPrefix(upper, "TQ") && len(upper) > 2 && isDigit(upper[2]) {
		return upper, true
	}
	if strings.HasPrefix(upper, "IQ") && len(upper) > 2 && isDigit(upper[2]) {
		return upper, true
	}
	if strings.HasPrefix(upper, "Q") && len(upper) > 1 && isDigit(upper[1]) {
		return upper, true
	}
	return "", false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
