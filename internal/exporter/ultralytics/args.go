package ultralytics

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ekisa-team/edgeport/internal/exporter"
	"github.com/ekisa-team/edgeport/mapsafe"
)

// boolOptions are the export switches the CLI parses as Python booleans.
var boolOptions = []string{"half", "int8", "nms", "dynamic", "simplify", "optimize", "keras"}

// BuildArgs builds `yolo export` command-line arguments:
//
//	export model=<weights> format=<format> key=value ...
//
// Options are emitted in sorted key order so the command line is stable.
func BuildArgs(req *exporter.Request) ([]string, error) {
	if strings.TrimSpace(req.Format) == "" {
		return nil, fmt.Errorf("%w: format is required", exporter.ErrInvalidOptions)
	}
	if req.WeightsPath == "" {
		return nil, fmt.Errorf("%w: weights path is required", exporter.ErrInvalidOptions)
	}

	p := req.Options
	if err := validateOptions(p); err != nil {
		return nil, err
	}

	args := []string{
		"export",
		"model=" + req.WeightsPath,
		"format=" + req.Format,
	}

	for _, key := range slices.Sorted(maps.Keys(p)) {
		if key == "model" || key == "format" {
			continue
		}

		v, err := formatValue(p[key])
		if err != nil {
			return nil, fmt.Errorf("%w: option %s: %w", exporter.ErrInvalidOptions, key, err)
		}
		args = append(args, key+"="+v)
	}

	return args, nil
}

func validateOptions(p map[string]any) error {
	for _, key := range boolOptions {
		if !mapsafe.Has(p, key) {
			continue
		}
		if _, ok := p[key].(bool); !ok {
			return fmt.Errorf("%w: option %s must be a boolean", exporter.ErrInvalidOptions, key)
		}
	}

	if mapsafe.Has(p, "imgsz") {
		if dims := mapsafe.Get[[]any](p, "imgsz", nil); dims != nil {
			if len(dims) != 2 {
				return fmt.Errorf("%w: option imgsz must be a size or a [height, width] pair", exporter.ErrInvalidOptions)
			}
			for _, d := range dims {
				if n, ok := d.(int); !ok || n <= 0 {
					return fmt.Errorf("%w: option imgsz dimensions must be positive integers", exporter.ErrInvalidOptions)
				}
			}
		} else if mapsafe.Get(p, "imgsz", 0) <= 0 {
			return fmt.Errorf("%w: option imgsz must be a positive integer", exporter.ErrInvalidOptions)
		}
	}

	if mapsafe.Get(p, "half", false) && mapsafe.Get(p, "int8", false) {
		return fmt.Errorf("%w: half and int8 are mutually exclusive", exporter.ErrInvalidOptions)
	}

	return nil
}

// formatValue renders a value the way the CLI's key=value parser expects it.
func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return x, nil
	case nil:
		return "None", nil
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			s, err := formatValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
