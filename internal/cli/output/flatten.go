package output

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flatten turns data into sorted "dotted.key"/value pairs using its YAML
// field names. Lists are joined with commas.
func Flatten(data any) ([][2]string, error) {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to flatten: %w", err)
	}

	var pairs [][2]string
	flattenInto(&pairs, "", tree)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs, nil
}

func flattenInto(pairs *[][2]string, prefix string, v any) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(pairs, key, child)
		}
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = fmt.Sprint(item)
		}
		*pairs = append(*pairs, [2]string{prefix, strings.Join(items, ",")})
	case nil:
		*pairs = append(*pairs, [2]string{prefix, ""})
	default:
		*pairs = append(*pairs, [2]string{prefix, fmt.Sprint(v)})
	}
}
