package schema

import (
	"regexp"
	"strconv"
)

// decl is one located declaration. spans index the numeric literals in the
// original text, in declaration order.
type decl struct {
	symbol string
	define bool
	values []int
	spans  [][2]int
}

var numberRE = regexp.MustCompile(`-?\b\d+\b`)

// maskComments blanks out C comments so positions in the result line up with src.
// Newlines are kept so line-anchored patterns still work.
func maskComments(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	n := len(out)
	for i := 0; i < n; i++ {
		switch {
		case out[i] == '"':
			for i++; i < n && out[i] != '"'; i++ {
				if out[i] == '\\' {
					i++
				}
			}
		case out[i] == '/' && i+1 < n && out[i+1] == '/':
			for ; i < n && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case out[i] == '/' && i+1 < n && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for ; i < n; i++ {
				if out[i] == '*' && i+1 < n && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
		}
	}
	return out
}

func definePattern(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^[ \t]*#define[ \t]+` + regexp.QuoteMeta(symbol) + `[ \t]+(-?\d+)\b`)
}

func arrayPattern(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`\b[A-Za-z_]\w*\s+` + regexp.QuoteMeta(symbol) + `\s*(?:\[[^\]]*\]\s*)+=\s*\{`)
}

// locate returns every declaration of symbol found in the masked text.
func locate(masked []byte, symbol string) []decl {
	var out []decl
	for _, m := range definePattern(symbol).FindAllSubmatchIndex(masked, -1) {
		v, err := strconv.Atoi(string(masked[m[2]:m[3]]))
		if err != nil {
			continue
		}
		out = append(out, decl{
			symbol: symbol,
			define: true,
			values: []int{v},
			spans:  [][2]int{{m[2], m[3]}},
		})
	}
	for _, m := range arrayPattern(symbol).FindAllIndex(masked, -1) {
		open := m[1] - 1
		end := matchingBrace(masked, open)
		if end < 0 {
			continue
		}
		d := decl{symbol: symbol}
		for _, nm := range numberRE.FindAllIndex(masked[open+1:end], -1) {
			s, e := open+1+nm[0], open+1+nm[1]
			v, err := strconv.Atoi(string(masked[s:e]))
			if err != nil {
				continue
			}
			d.values = append(d.values, v)
			d.spans = append(d.spans, [2]int{s, e})
		}
		out = append(out, d)
	}
	return out
}

// matchingBrace returns the index of the brace closing the one at open, or -1.
func matchingBrace(b []byte, open int) int {
	depth := 0
	for i := open; i < len(b); i++ {
		switch b[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// lookup locates symbol and insists on a single declaration.
func lookup(masked []byte, symbol string) (decl, error) {
	ds := locate(masked, symbol)
	switch len(ds) {
	case 0:
		return decl{}, &MissingFeatureError{Symbol: symbol}
	case 1:
		return ds[0], nil
	}
	return decl{}, &SchemaParseError{Symbol: symbol, Reason: "declared " + strconv.Itoa(len(ds)) + " times"}
}
