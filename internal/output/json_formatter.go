package output

import "github.com/goccy/go-json"

// JSONFormatter writes the set report field as indented JSON
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(r Report) ([]byte, error) {
	var v any
	switch {
	case r.Measurement != nil:
		v = r.Measurement
	case r.Incurred != nil:
		v = r.Incurred
	default:
		v = r.Batch
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
