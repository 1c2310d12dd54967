package family

import (
	"fmt"
	"regexp"
	"strings"
)

// Base prune sets a profile can build on.
const (
	PruneGCC  = "gcc"
	PruneV3   = "v3"
	PruneNone = "none"
)

// gccPrune matches compiler chatter that never indicates a test failure:
// context lines, linker summaries and ignored -fpic warnings.
var gccPrune = regexp.MustCompile(`(?m)` +
	`(^.*: In ((static member )?function|member|method|(copy )?constructor|instantiation|program|subroutine|block-data) .*)` +
	`|(^.*: At (top level|global scope):.*)` +
	`|(^collect2: ld returned .*)` +
	`|(^Please submit.*instructions.*)` +
	`|(^.*: warning: -f(pic|PIC) ignored for target.*)` +
	`|(^.*: warning: -f(pic|PIC)( and -fpic are|is)? not supported.*)`)

// OldDejaPrune are the extra patterns old-deja tests strip before the gcc set.
var OldDejaPrune = []string{
	`^.*: In (.*function|method|.*structor).*`,
	`^.*: In instantiation of .*`,
	`^.*:   instantiated from .*`,
	`^.*file path prefix .* never used`,
	`^.*linker input file unused since linking not done`,
	`^collect: re(compiling|linking).*`,
}

var (
	v3SectionsPrune = regexp.MustCompile(`(^|\n)[^\n]*: -ffunction-sections may affect debugging on some targets[^\n]*`)
	v3FunctionPrune = regexp.MustCompile(`(^|\n)[^\n]*: In function [^\n]*`)
)

// pruneFunc compiles a profile's extra patterns and chains them in front of
// its base set.
func pruneFunc(base string, extra []string) (func(string) string, error) {
	var res []*regexp.Regexp
	if len(extra) > 0 {
		re, err := regexp.Compile(`(?m)(` + strings.Join(extra, ")|(") + `)`)
		if err != nil {
			return nil, fmt.Errorf("compiling prune patterns: %w", err)
		}
		res = append(res, re)
	}

	switch base {
	case "", PruneGCC:
		res = append(res, gccPrune)
	case PruneV3:
		res = append(res, v3SectionsPrune, v3FunctionPrune)
	case PruneNone:
	default:
		return nil, fmt.Errorf("unknown base prune %q", base)
	}

	return func(s string) string {
		for _, re := range res {
			s = re.ReplaceAllString(s, "")
		}
		return s
	}, nil
}
