package driver

import (
	"regexp"
	"sort"
	"strings"
)

// includeMarkers maps substrings found in source text to the standard
// header that declares them.
var includeMarkers = []struct {
	marker string
	header string
}{
	{"cout", "iostream"},
	{"cin", "iostream"},
	{"getline", "iostream"},
	{"endl", "iostream"},
	{"string", "string"},
	{"vector", "vector"},
	{"unordered_map", "unordered_map"},
	{"map<", "map"},
	{"unordered_set", "unordered_set"},
	{"set<", "set"},
	{"multiset<", "set"},
	{"queue", "queue"},
	{"deque", "deque"},
	{"stack<", "stack"},
	{"list<", "list"},
	{"pair<", "utility"},
	{"make_pair", "utility"},
	{"tuple<", "tuple"},
	{"function<", "functional"},
	{"bitset<", "bitset"},
	{"sort(", "algorithm"},
	{"reverse(", "algorithm"},
	{"min(", "algorithm"},
	{"max(", "algorithm"},
	{"swap(", "algorithm"},
	{"min_element", "algorithm"},
	{"max_element", "algorithm"},
	{"lower_bound", "algorithm"},
	{"upper_bound", "algorithm"},
	{"unique(", "algorithm"},
	{"INT_MAX", "climits"},
	{"INT_MIN", "climits"},
	{"LLONG_MAX", "climits"},
	{"LLONG_MIN", "climits"},
	{"LONG_MAX", "climits"},
	{"numeric_limits", "limits"},
	{"accumulate", "numeric"},
	{"iota(", "numeric"},
	{"sqrt(", "cmath"},
	{"pow(", "cmath"},
	{"abs(", "cmath"},
	{"floor(", "cmath"},
	{"ceil(", "cmath"},
	{"stringstream", "sstream"},
	{"memset", "cstring"},
	{"strlen", "cstring"},
}

var (
	includeLine = regexp.MustCompile(`(?m)^\s*#\s*include\s*[<"]([^>"]+)[>"]`)
	directive   = regexp.MustCompile(`(?m)^[ \t]*#.*$`)
)

const allHeaders = "bits/stdc++.h"

// RequiredIncludes returns the headers text needs, sorted. Preprocessor
// lines are not scanned, so <cstring> does not read as a use of string.
func RequiredIncludes(text string) []string {
	text = directive.ReplaceAllString(text, "")
	seen := make(map[string]bool)
	for _, m := range includeMarkers {
		if strings.Contains(text, m.marker) {
			seen[m.header] = true
		}
	}
	return sortedKeys(seen)
}

// PresentIncludes returns the headers src already includes.
func PresentIncludes(src string) map[string]bool {
	present := make(map[string]bool)
	for _, m := range includeLine.FindAllStringSubmatch(src, -1) {
		present[strings.TrimSpace(m[1])] = true
	}
	return present
}

// MissingIncludes returns the headers text needs that src does not include.
func MissingIncludes(src, text string, always ...string) []string {
	present := PresentIncludes(src)
	if present[allHeaders] {
		return nil
	}

	needed := make(map[string]bool)
	for _, h := range always {
		needed[h] = true
	}
	for _, h := range RequiredIncludes(text) {
		needed[h] = true
	}
	for h := range present {
		delete(needed, h)
	}
	return sortedKeys(needed)
}

func includeBlock(headers []string) string {
	var sb strings.Builder
	for _, h := range headers {
		sb.WriteString("#include <" + h + ">\n")
	}
	return sb.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
