package extraction

import (
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

func TestParseModelOutputStripsFences(t *testing.T) {
	raw := "```json\n{\"assets\":[{\"tag\":\"P-101\",\"type\":\"Pump\",\"coordinates\":[0.22,0.41]}]}\n```"
	out, err := ParseModelOutput(raw, PolicyStrict)
	if err != nil {
		t.Fatalf("ParseModelOutput() error = %v", err)
	}
	if len(out.Assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(out.Assets))
	}
	got := out.Assets[0]
	if got.Tag != "P-101" || got.Type != "Pump" || got.Coordinates.X != 0.22 || got.Coordinates.Y != 0.41 {
		t.Fatalf("unexpected asset %+v", got)
	}
}

func TestParseModelOutputAcceptsEmptyList(t *testing.T) {
	out, err := ParseModelOutput(`{"assets": []}`, PolicyStrict)
	if err != nil {
		t.Fatalf("ParseModelOutput() error = %v", err)
	}
	if len(out.Assets) != 0 || out.Dropped != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestParseModelOutputToleratesSurroundingProse(t *testing.T) {
	raw := "Here is the result:\n{\"assets\":[{\"tag\":\"V-7\",\"type\":\"Valve\",\"coordinates\":[0.55,0.3]}]}\nDone."
	out, err := ParseModelOutput(raw, PolicyStrict)
	if err != nil {
		t.Fatalf("ParseModelOutput() error = %v", err)
	}
	if len(out.Assets) != 1 || out.Assets[0].Tag != "V-7" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestParseModelOutputMalformed(t *testing.T) {
	for _, raw := range []string{"", "```\n```", "not json at all", `{"assets": [`} {
		_, err := ParseModelOutput(raw, PolicyStrict)
		if !domain.IsKind(err, domain.ErrMalformedModelOutput) {
			t.Fatalf("expected ErrMalformedModelOutput for %q, got %v", raw, err)
		}
	}
}

func TestParseModelOutputRejectsWholeBatch(t *testing.T) {
	cases := map[string]string{
		"missing tag":      `{"assets":[{"tag":"P-1","type":"Pump","coordinates":[0.1,0.2]},{"type":"Valve","coordinates":[0.3,0.4]}]}`,
		"one coordinate":   `{"assets":[{"tag":"P-1","type":"Pump","coordinates":[0.1]}]}`,
		"three coordinate": `{"assets":[{"tag":"P-1","type":"Pump","coordinates":[0.1,0.2,0.3]}]}`,
		"string coord":     `{"assets":[{"tag":"P-1","type":"Pump","coordinates":["0.1",0.2]}]}`,
		"blank type":       `{"assets":[{"tag":"P-1","type":"  ","coordinates":[0.1,0.2]}]}`,
		"no envelope":      `[{"tag":"P-1","type":"Pump","coordinates":[0.1,0.2]}]`,
		"missing assets":   `{"items":[]}`,
	}
	for name, raw := range cases {
		out, err := ParseModelOutput(raw, PolicyStrict)
		if !domain.IsKind(err, domain.ErrSchemaValidation) {
			t.Fatalf("%s: expected ErrSchemaValidation, got %v", name, err)
		}
		if len(out.Assets) != 0 {
			t.Fatalf("%s: no assets may be returned on rejection", name)
		}
	}
}

func TestParseModelOutputReportsFirstViolation(t *testing.T) {
	raw := `{"assets":[{"tag":"P-1","type":"Pump","coordinates":[0.1,0.2]},{"type":"Valve","coordinates":[0.3,0.4]},{"tag":"X"}]}`
	_, err := ParseModelOutput(raw, PolicyStrict)
	var extractionErr *Error
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !strings.HasPrefix(extractionErr.Detail, "assets[1]") || !strings.Contains(extractionErr.Detail, "tag") {
		t.Fatalf("unexpected detail %q", extractionErr.Detail)
	}
}

func TestParseModelOutputLenientDropsInvalid(t *testing.T) {
	raw := `{"assets":[{"tag":"P-1","type":"Pump","coordinates":[0.1,0.2]},{"type":"Valve","coordinates":[0.3,0.4]},{"tag":"T-3","type":"Tank","coordinates":[1.02,0.5]}]}`
	out, err := ParseModelOutput(raw, PolicyLenient)
	if err != nil {
		t.Fatalf("ParseModelOutput() error = %v", err)
	}
	if len(out.Assets) != 2 || out.Dropped != 1 {
		t.Fatalf("expected 2 kept and 1 dropped, got %+v", out)
	}
	if out.Assets[1].Coordinates.X != 1.02 {
		t.Fatalf("out-of-range coordinates must pass through, got %+v", out.Assets[1])
	}
}

func TestParsePolicy(t *testing.T) {
	if ParsePolicy("LENIENT") != PolicyLenient {
		t.Fatalf("expected lenient policy")
	}
	if ParsePolicy("") != PolicyStrict || ParsePolicy("whatever") != PolicyStrict {
		t.Fatalf("expected strict default")
	}
}
