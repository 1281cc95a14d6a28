package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// GenerateOptions control the generated file.
type GenerateOptions struct {
	// Module is the import path of the paramtree module.
	Module string

	// Source is named in the generated header.
	Source string
}

// Generate renders the Go source for a layout.
func Generate(l *RawLayout, opts GenerateOptions) (string, error) {
	g := &generator{
		enums: make(map[string]*RawEnumDef),
		data: layoutData{
			Package:     l.Package,
			Module:      opts.Module,
			Source:      opts.Source,
			Name:        l.Name,
			Description: l.Description,
		},
	}
	for i := range l.Enums {
		e := &l.Enums[i]
		g.enums[e.Name] = e
		g.data.Enums = append(g.data.Enums, enumData{
			Var:         enumVar(e.Name),
			Description: e.Description,
			Values:      e.Values,
		})
	}
	if err := g.nodes("", "", l.Nodes); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range []string{"header", "enums", "struct", "handlers", "build"} {
		renderTemplate(&b, name, g.data)
	}
	return b.String(), nil
}

type generator struct {
	enums map[string]*RawEnumDef
	data  layoutData
}

func (g *generator) nodes(parentField, prefix string, defs []RawNodeDef) error {
	parent := "parent"
	if parentField != "" {
		parent = "n." + parentField
	}
	for _, def := range defs {
		path := strings.TrimPrefix(prefix+"/"+def.Name, "/")
		field := goName(path)
		call, err := g.call(parent, field, def)
		if err != nil {
			return fmt.Errorf("node %s: %w", path, err)
		}
		nd := nodeData{
			Field:       field,
			Path:        path,
			Parent:      parent,
			Call:        call,
			Description: def.Description,
		}
		g.data.Nodes = append(g.data.Nodes, nd)
		if def.Type == "exec" {
			g.data.Handlers = append(g.data.Handlers, nd)
		}
		if def.Type == "dir" {
			if err := g.nodes(field, path, def.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *generator) call(parent, field string, def RawNodeDef) (string, error) {
	opts, err := g.options(def)
	if err != nil {
		return "", err
	}
	name := strconv.Quote(def.Name)
	switch {
	case def.Type == "dir":
		return fmt.Sprintf("tree.AddDir(%s, %s%s)", parent, name, opts), nil
	case def.Type == "exec":
		return fmt.Sprintf("tree.AddExec(%s, %s, h.%s%s)", parent, name, field, opts), nil
	case def.Array:
		initial, err := g.arrayLiteral(def)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("tree.AddValueArray(%s, %s, %s%s)", parent, name, initial, opts), nil
	}
	initial, err := g.literal(def, def.Default)
	if err != nil {
		return "", err
	}
	if def.Type != "string" && def.Type != "bool" {
		initial = def.Type + "(" + initial + ")"
	}
	return fmt.Sprintf("tree.AddValue(%s, %s, %s%s)", parent, name, initial, opts), nil
}

func (g *generator) arrayLiteral(def RawNodeDef) (string, error) {
	if def.Default == nil {
		return fmt.Sprintf("make([]%s, %d)", def.Type, def.Size), nil
	}
	items, ok := def.Default.([]any)
	if !ok {
		return "", fmt.Errorf("array default must be a list")
	}
	if def.Size > 0 && len(items) != def.Size {
		return "", fmt.Errorf("default has %d elements, size is %d", len(items), def.Size)
	}
	elems := make([]string, len(items))
	for i, item := range items {
		lit, err := g.literal(def, item)
		if err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = lit
	}
	return fmt.Sprintf("[]%s{%s}", def.Type, strings.Join(elems, ", ")), nil
}

// literal formats v as an untyped Go constant for the node type. Enum
// names are replaced by their position.
func (g *generator) literal(def RawNodeDef, v any) (string, error) {
	if name, ok := v.(string); ok && def.Enum != "" {
		i := slices.Index(g.enums[def.Enum].Values, name)
		if i < 0 {
			return "", fmt.Errorf("%q is not in enum %s", name, def.Enum)
		}
		return strconv.Itoa(i), nil
	}
	switch def.Type {
	case "string":
		if v == nil {
			return `""`, nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%v is not a string", v)
		}
		return strconv.Quote(s), nil
	case "bool":
		if v == nil {
			return "false", nil
		}
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("%v is not a bool", v)
		}
		return strconv.FormatBool(b), nil
	}

	switch x := v.(type) {
	case nil:
		return "0", nil
	case int:
		if strings.HasPrefix(def.Type, "uint") && x < 0 {
			return "", fmt.Errorf("%d is negative for %s", x, def.Type)
		}
		return strconv.Itoa(x), nil
	case float64:
		if isInteger(def.Type) {
			return "", fmt.Errorf("%v is not an integer", x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("%v is not a number", v)
}

func (g *generator) bound(def RawNodeDef, v any) (string, error) {
	lit, err := g.literal(def, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("constraint.Val[%s](%s)", def.Type, lit), nil
}

func (g *generator) constraint(def RawNodeDef) (string, error) {
	var parts []string
	switch {
	case def.Min != nil && def.Max != nil:
		lo, err := g.bound(def, def.Min)
		if err != nil {
			return "", err
		}
		hi, err := g.bound(def, def.Max)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("constraint.Range(%s, %s)", lo, hi))
	case def.Min != nil || def.Max != nil:
		return "", fmt.Errorf("min and max must be given together, use above or below for one-sided limits")
	}
	if def.Above != nil {
		b, err := g.bound(def, def.Above)
		if err != nil {
			return "", err
		}
		parts = append(parts, "constraint.Gt("+b+")")
	}
	if def.Below != nil {
		b, err := g.bound(def, def.Below)
		if err != nil {
			return "", err
		}
		parts = append(parts, "constraint.Lt("+b+")")
	}
	if len(def.Allowed) > 0 {
		members := make([]string, len(def.Allowed))
		for i, a := range def.Allowed {
			b, err := g.bound(def, a)
			if err != nil {
				return "", err
			}
			members[i] = b
		}
		parts = append(parts, "constraint.Set("+strings.Join(members, ", ")+")")
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		g.data.Constraints = true
		return parts[0], nil
	}
	g.data.Constraints = true
	return "constraint.And(" + strings.Join(parts, ", ") + ")", nil
}

func (g *generator) options(def RawNodeDef) (string, error) {
	var opts []string
	if def.Type != "dir" && def.Type != "exec" {
		c, err := g.constraint(def)
		if err != nil {
			return "", err
		}
		if c != "" {
			opts = append(opts, "tree.WithConstraint("+c+")")
		}
	}
	if def.Enum != "" {
		opts = append(opts, "tree.WithEnum("+enumVar(def.Enum)+")")
	}
	for _, f := range def.Flags {
		switch f {
		case "persistent":
			opts = append(opts, "tree.Persistent()")
		case "hidden":
			opts = append(opts, "tree.Hidden()")
		case "constant":
			opts = append(opts, "tree.Constant()")
		case "readonly":
			opts = append(opts, "tree.ReadOnly()")
		case "signal":
			opts = append(opts, "tree.Signal()")
		}
	}
	if def.Description != "" {
		opts = append(opts, "tree.WithDescription("+strconv.Quote(def.Description)+")")
	}
	if len(opts) == 0 {
		return "", nil
	}
	return ", " + strings.Join(opts, ", "), nil
}

// goName converts "frontend/gain" to "FrontendGain" and "turn-by-turn" to
// "TurnByTurn".
func goName(path string) string {
	var b strings.Builder
	upper := true
	for _, r := range path {
		if r == '/' || r == '-' || r == '_' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func enumVar(name string) string {
	return goName(name) + "Domain"
}

func firstLower(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
