package logging

import "log/slog"

func clone[T any](s []T) []T {
	c := make([]T, len(s))
	copy(c, s)
	return c
}

// makeGroup places attrs into m, nested under the given group path.
func makeGroup(groups []string, attrs []slog.Attr, m map[string]any) {
	target := m
	for _, group := range groups {
		nested, ok := target[group].(map[string]any)
		if !ok {
			nested = make(map[string]any)
			target[group] = nested
		}
		target = nested
	}
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			makeGroup([]string{attr.Key}, attr.Value.Group(), target)
		} else {
			target[attr.Key] = attr.Value.Resolve().Any()
		}
	}
}
