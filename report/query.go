package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/jmespath/go-jmespath"

	"github.com/weiihann/heft/harness"
)

// Query evaluates a JMESPath expression against the JSON form of p and
// returns the indented JSON result.
func Query(p *harness.Payload, expression string) ([]byte, error) {
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expression, err)
	}

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, p); err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	result, err := jp.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expression, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode query result: %w", err)
	}

	return append(out, '\n'), nil
}

// WriteJSONColor writes JSON to w, highlighted for a terminal when color is
// set.
func WriteJSONColor(w io.Writer, data []byte, color bool) error {
	if !color {
		_, err := w.Write(data)

		return err
	}

	return quick.Highlight(w, string(data), "json", "terminal256", "monokai")
}
