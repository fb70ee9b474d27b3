package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// LayoutArgs are the layout fields shared by the layout tools.
type LayoutArgs struct {
	ObjectNames  []string
	PositionList [][]int
	NumObjects   int
}

func layoutProperties() map[string]Property {
	four := 4
	return map[string]Property{
		"object_name": {
			Type:        "array",
			Description: "Names of the objects, in painting order",
			Items:       &Property{Type: "string"},
		},
		"num_objects": {
			Type:        "integer",
			Description: "Number of objects",
		},
		"position_list": {
			Type:        "array",
			Description: "One [center_x, center_y, width, height] item per object, in the same order as object_name",
			Items: &Property{
				Type:     "array",
				Items:    &Property{Type: "integer"},
				MinItems: &four,
				MaxItems: &four,
			},
		},
	}
}

// ParseLayoutArgs extracts object_name, num_objects and position_list.
// Per-item arity is not checked here; position tuples are returned as given.
func ParseLayoutArgs(args map[string]any) (LayoutArgs, error) {
	var out LayoutArgs

	names, err := stringList(args["object_name"])
	if err != nil {
		return out, fmt.Errorf("object_name: %w", err)
	}
	out.ObjectNames = names

	if raw, ok := args["num_objects"]; ok && raw != nil {
		n, err := toInt(raw)
		if err != nil {
			return out, fmt.Errorf("num_objects: %w", err)
		}
		out.NumObjects = n
	} else {
		out.NumObjects = len(names)
	}

	rawList, ok := args["position_list"].([]any)
	if !ok {
		return out, fmt.Errorf("position_list is required and must be an array")
	}
	out.PositionList = make([][]int, 0, len(rawList))
	for i, item := range rawList {
		values, ok := item.([]any)
		if !ok {
			return out, fmt.Errorf("position_list[%d] must be an array", i)
		}
		tuple := make([]int, 0, len(values))
		for j, v := range values {
			n, err := toInt(v)
			if err != nil {
				return out, fmt.Errorf("position_list[%d][%d]: %w", i, j, err)
			}
			tuple = append(tuple, n)
		}
		out.PositionList = append(out.PositionList, tuple)
	}
	return out, nil
}

// ToArgs renders the layout back into tool-call argument form.
func (a LayoutArgs) ToArgs() map[string]any {
	names := make([]any, len(a.ObjectNames))
	for i, n := range a.ObjectNames {
		names[i] = n
	}
	positions := make([]any, len(a.PositionList))
	for i, tuple := range a.PositionList {
		values := make([]any, len(tuple))
		for j, v := range tuple {
			values[j] = float64(v)
		}
		positions[i] = values
	}
	return map[string]any{
		"object_name":   names,
		"num_objects":   float64(a.NumObjects),
		"position_list": positions,
	}
}

func stringList(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be an array of strings")
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("item %d must be a non-empty string", i)
		}
		out = append(out, s)
	}
	return out, nil
}

// toInt accepts JSON numbers that hold integral values.
func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer", v)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}
}

func boolArg(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("unexpected type %T", raw)
	}
}
