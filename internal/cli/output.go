package cli

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputDump = "dump"
)

func validateOutput(format string) error {
	switch format {
	case outputJSON, outputYAML, outputDump:
		return nil
	default:
		return fmt.Errorf(`%w: output "%s" is not supported, use one of: json, yaml, dump`, ErrInvalidArgument, format)
	}
}

// writeResult writes the decoded response in the format.
// Text and binary bodies are written as they are, unless the format is "dump".
func writeResult(w io.Writer, result any, path, format string) error {
	if path != "" {
		selected, err := selectPath(result, path)
		if err != nil {
			return err
		}
		result = selected
	}

	if format == outputDump {
		spew.Fdump(w, result)
		return nil
	}

	switch v := result.(type) {
	case nil:
		return nil
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, withNewLine(v))
		return err
	}

	var out []byte
	var err error
	switch format {
	case outputYAML:
		out, err = yaml.Marshal(result)
	default:
		out, err = json.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot encode result to %s: %w", format, err)
	}
	_, err = io.WriteString(w, withNewLine(string(out)))
	return err
}

// selectPath returns the value at the gjson path, a text body is searched as JSON.
func selectPath(result any, path string) (any, error) {
	var data []byte
	switch v := result.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("cannot encode result to json: %w", err)
		}
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf(`%w: cannot select "%s", the response is not JSON`, ErrInvalidArgument, path)
	}
	value := gjson.GetBytes(data, path)
	if !value.Exists() {
		return nil, fmt.Errorf(`%w: path "%s" not found in the response`, ErrInvalidArgument, path)
	}
	return value.Value(), nil
}

func withNewLine(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
