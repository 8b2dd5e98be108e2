package validator

import (
	"strings"
	"testing"
)

func TestVendorDescriptorContract(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid_iobuf",
			data: map[string]interface{}{
				"name": "IOBUF",
				"parameters": map[string]interface{}{
					"IOSTANDARD": "LVCMOS33",
					"DRIVE":      map[string]interface{}{"value": 12, "width": 4},
				},
				"inputs":  map[string]interface{}{"I": 1, "T": 1},
				"outputs": map[string]interface{}{"O": 1},
				"inouts":  map[string]interface{}{"IO": 1},
			},
			wantErr: false,
		},
		{
			name:    "name_only",
			data:    map[string]interface{}{"name": "BUFG"},
			wantErr: false,
		},
		{
			name:    "missing_name",
			data:    map[string]interface{}{"inputs": map[string]interface{}{"I": 1}},
			wantErr: true,
		},
		{
			name: "zero_width_port",
			data: map[string]interface{}{
				"name":   "BUFG",
				"inputs": map[string]interface{}{"I": 0},
			},
			wantErr: true,
		},
		{
			name: "bad_port_identifier",
			data: map[string]interface{}{
				"name":    "BUFG",
				"outputs": map[string]interface{}{"0bad": 1},
			},
			wantErr: true,
		},
		{
			name: "multi_line_string_param",
			data: map[string]interface{}{
				"name":       "BUFG",
				"parameters": map[string]interface{}{"NOTE": "a\nb"},
			},
			wantErr: true,
		},
		{
			name: "negative_const_param",
			data: map[string]interface{}{
				"name":       "BUFG",
				"parameters": map[string]interface{}{"N": map[string]interface{}{"value": -1, "width": 4}},
			},
			wantErr: true,
		},
		{
			name: "unknown_top_level_field",
			data: map[string]interface{}{
				"name":  "BUFG",
				"ports": []interface{}{},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsNamePath(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	errs := v.ValidationErrors([]byte(`{"name": "BUFG", "inputs": {"CLK": 0}}`))
	if len(errs) == 0 {
		t.Fatalf("expected validation errors")
	}
	if !strings.Contains(strings.Join(errs, "\n"), "CLK") {
		t.Fatalf("expected error to name inputs.CLK, got %v", errs)
	}

	if errs := v.ValidationErrors([]byte(`{"name": "BUFG"}`)); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateJSONRejectsMalformed(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if err := v.ValidateJSON([]byte(`{"name": `)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestReportValidator(t *testing.T) {
	v, err := NewReportValidator()
	if err != nil {
		t.Fatalf("new report validator: %v", err)
	}

	valid := map[string]interface{}{
		"designs": []interface{}{
			map[string]interface{}{
				"name":      "counter",
				"status":    "ok",
				"top":       "counter",
				"modules":   1,
				"outputs":   []interface{}{"build/counter.v"},
				"unchanged": 0,
				"violations": []interface{}{
					map[string]interface{}{
						"rule":     "unused_input",
						"severity": "warning",
						"design":   "counter",
						"module":   "counter",
						"message":  "input 'en' is never read",
					},
				},
			},
		},
		"summary": map[string]interface{}{
			"built": 1, "failed": 0, "written": 1, "unchanged": 0, "errors": 0, "warnings": 1,
		},
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("expected valid report, got %v", err)
	}

	valid["designs"].([]interface{})[0].(map[string]interface{})["status"] = "maybe"
	if err := v.Validate(valid); err == nil {
		t.Fatalf("expected invalid status to fail")
	}
}
