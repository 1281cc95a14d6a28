package main

import (
	"fmt"
	"strings"

	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

// splitElements accepts array elements as separate arguments, as one
// comma separated argument, or any mix of both. Brackets are ignored so
// printed arrays can be pasted back.
func splitElements(args []string) []string {
	var out []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		arg = strings.TrimPrefix(arg, "[")
		arg = strings.TrimSuffix(arg, "]")
		for _, e := range strings.Split(arg, ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
	}
	return out
}

// parseElement parses one element of the node's kind. Enum names are
// translated through the domain.
func parseElement(info tree.Info, s string) (value.Value, error) {
	if info.Domain != nil {
		if x, ok := info.Domain.Value(s); ok {
			return value.Convert(value.Int64(x), info.Kind)
		}
		v, err := value.Parse(info.Kind, s)
		if err != nil {
			return value.Value{}, &tree.ValidationError{Expression: info.Domain.String(), Value: value.String(s)}
		}
		return v, nil
	}
	return value.Parse(info.Kind, s)
}

// parseInput converts command line arguments to a value for the node
// described by info.
func parseInput(info tree.Info, args []string) (value.Value, error) {
	if !info.Kind.IsValid() {
		return value.Value{}, fmt.Errorf("%s has no value", info.Name)
	}
	if len(args) == 0 {
		return value.Value{}, fmt.Errorf("missing value for %s", info.Name)
	}

	if !info.Flags.Array() {
		if info.Kind == value.KindString {
			return value.String(strings.Join(args, " ")), nil
		}
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("%s takes a single %s value", info.Name, info.Kind)
		}
		return parseElement(info, strings.TrimSpace(args[0]))
	}

	var elems []string
	if info.Kind == value.KindString {
		elems = args
	} else {
		elems = splitElements(args)
	}
	if len(elems) == 0 {
		return value.Value{}, fmt.Errorf("missing value for %s", info.Name)
	}
	out := value.ZeroArray(info.Kind, len(elems))
	for i, s := range elems {
		e, err := parseElement(info, s)
		if err != nil {
			return value.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		if out, err = out.Splice(i, e); err != nil {
			return value.Value{}, err
		}
	}
	return out, nil
}

// elementNames renders every element, using enum names where the domain
// has one.
func elementNames(v value.Value, domain *tree.EnumDomain) []string {
	elems := v.Strings()
	if domain == nil || !v.Kind().IsInteger() {
		return elems
	}
	for i := range elems {
		e, err := v.Index(i)
		if err != nil {
			continue
		}
		x, err := value.Convert(e, value.KindInt64)
		if err != nil {
			continue
		}
		n, _ := value.As[int64](x)
		if name, ok := domain.Name(n); ok {
			elems[i] = name
		}
	}
	return elems
}

// formatValue renders v like value.String, with enum names.
func formatValue(v value.Value, domain *tree.EnumDomain) string {
	if !v.IsValid() {
		return v.String()
	}
	elems := elementNames(v, domain)
	if !v.IsArray() {
		return elems[0]
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// jsonValue returns the value as plain Go data for JSON output.
func jsonValue(v value.Value, domain *tree.EnumDomain) any {
	if domain != nil {
		elems := elementNames(v, domain)
		if v.IsArray() {
			return elems
		}
		return elems[0]
	}
	return v.Interface()
}
