package external

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// externalOpenRegexp matches the opening line of an `@external: {` block
// (spec §6.4), allowing for the `//` or `* ` a block/line comment would
// otherwise carry — a side-file is the same grammar with the comment
// leaders stripped, so one scanner serves both origins.
var externalOpenRegexp = regexp.MustCompile(`^\s*(?://|\*)?\s*@external:\s*\{`)
var externalEntryRegexp = regexp.MustCompile(`^\s*(?://|\*)?\s*([\w:*?.]+)\s*:\s*\[\s*(safe|unsafe)\s*,\s*(.*?)\s*\]\s*,?\s*$`)
var whitelistRegexp = regexp.MustCompile(`(?s)@external_whitelist:\s*\[(.*?)\]`)

// LoadAnnotationFile parses the `@external: { ... }` and
// `@external_whitelist: [ ... ]` blocks out of text (spec §6.4) and
// registers every entry into reg. Lines outside a recognized block are
// ignored, matching the driver's general posture of skipping what it
// doesn't recognize rather than failing the whole file.
func LoadAnnotationFile(reg *Registry, text string) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	inBlock := false
	for scanner.Scan() {
		line := scanner.Text()
		if !inBlock {
			if externalOpenRegexp.MatchString(line) {
				inBlock = true
			}
			continue
		}
		if strings.Contains(line, "}") {
			inBlock = false
			continue
		}
		m := externalEntryRegexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mode := ast.Safe
		if m[2] == "unsafe" {
			mode = ast.Unsafe
		}
		reg.Declare(m[1], mode, Signature(strings.Trim(m[3], `"`)))
	}

	if wm := whitelistRegexp.FindStringSubmatch(text); wm != nil {
		for _, raw := range strings.Split(wm[1], ",") {
			pattern := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
			if pattern == "" {
				continue
			}
			reg.AddWhitelist(pattern)
		}
	}
}
