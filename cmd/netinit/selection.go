package main

import (
	"fmt"
	"sort"
	"strings"
)

// selectionFlag collects repeated -select kind=variant[,variant] values
type selectionFlag map[string][]string

func (s selectionFlag) String() string {
	kinds := make([]string, 0, len(s))
	for kind := range s {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, kind+"="+strings.Join(s[kind], ","))
	}
	return strings.Join(parts, " ")
}

func (s selectionFlag) Set(value string) error {
	kind, list, ok := strings.Cut(value, "=")
	kind = strings.TrimSpace(kind)
	if !ok || kind == "" {
		return fmt.Errorf("expected kind=variant[,variant], got %q", value)
	}

	var variants []string
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		return fmt.Errorf("no variants given for %s", kind)
	}
	s[kind] = append(s[kind], variants...)
	return nil
}
