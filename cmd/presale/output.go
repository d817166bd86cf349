package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// wantsJSON reports whether the command should print JSON.
func wantsJSON(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// outputJSON prints v as indented JSON, or the results of the --jq filter
// applied to it, one per line.
func outputJSON(c *cli.Context, v interface{}) error {
	w := c.App.Writer
	filter := c.String("jq")
	if filter == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	results, err := applyJQ(filter, v)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// applyJQ runs filter over the JSON form of v.
func applyJQ(filter string, v interface{}) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only understands plain JSON values
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to normalize output: %w", err)
	}

	var results []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq filter %q failed: %w", filter, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func notifySuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.GreenString("✓ "+format, args...))
}

func notifyError(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.RedString("✗ "+format, args...))
}

func notifyInfo(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, color.CyanString(format, args...))
}
