package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is a kong configuration loader for YAML files. Keys are flag names,
// with dashes or underscores, e.g.
//
//	server: http://localhost:8000
//	retry_delay: 2s
//	tasks:
//	  watch:
//	    interval: 10s
func YAMLConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var f kong.ResolverFunc = func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, name := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if raw, ok := values[name]; ok {
				return configValue(raw), nil
			}
		}

		// nested under the command path, e.g. tasks.watch.interval
		if raw, ok := lookup(values, commandPath(parent), flag.Name); ok {
			return configValue(raw), nil
		}

		return nil, nil
	}

	return f, nil
}

func commandPath(p *kong.Path) []string {
	if p == nil {
		return nil
	}

	var names []string
	for n := p.Node(); n != nil; n = n.Parent {
		if n.Type == kong.CommandNode {
			names = append([]string{n.Name}, names...)
		}
	}
	return names
}

func lookup(values map[string]any, path []string, name string) (any, bool) {
	cur := values
	for _, part := range path {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}

	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if raw, ok := cur[key]; ok {
			return raw, true
		}
	}
	return nil, false
}

// configValue renders scalars and lists as the strings kong parses from the command line.
func configValue(raw any) any {
	switch v := raw.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return nil
	default:
		return fmt.Sprint(v)
	}
}
