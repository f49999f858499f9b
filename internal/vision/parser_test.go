package vision

import "testing"

func TestParseSingle(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		wantDescription string
		wantFilename    string
		wantOK          bool
	}{
		{
			name:            "valid response",
			raw:             `{"alt":"A cat","name":"cute-cat"}`,
			wantDescription: "A cat",
			wantFilename:    "cute-cat",
			wantOK:          true,
		},
		{
			name:            "json wrapped in prose",
			raw:             "Sure! Here it is:\n```json\n{\"alt\": \"Red bike\", \"name\": \"red-bike\"}\n```",
			wantDescription: "Red bike",
			wantFilename:    "red-bike",
			wantOK:          true,
		},
		{
			name:            "missing name still usable",
			raw:             `{"alt":"A dog"}`,
			wantDescription: "A dog",
			wantFilename:    "",
			wantOK:          true,
		},
		{
			name:            "not json",
			raw:             "not json",
			wantDescription: FallbackDescription,
			wantFilename:    "",
			wantOK:          false,
		},
		{
			name:            "empty alt",
			raw:             `{"alt":"  ","name":"something"}`,
			wantDescription: FallbackDescription,
			wantFilename:    "",
			wantOK:          false,
		},
		{
			name:            "empty input",
			raw:             "",
			wantDescription: FallbackDescription,
			wantFilename:    "",
			wantOK:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ParseSingle(tt.raw)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if res.Description != tt.wantDescription {
				t.Errorf("description = %q, want %q", res.Description, tt.wantDescription)
			}
			if res.Filename != tt.wantFilename {
				t.Errorf("filename = %q, want %q", res.Filename, tt.wantFilename)
			}
		})
	}
}

func TestParseBulk(t *testing.T) {
	mapping, ok := ParseBulk(`{"1":"desc1","2":"desc2"}`)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(mapping) != 2 || mapping["1"] != "desc1" || mapping["2"] != "desc2" {
		t.Errorf("unexpected mapping: %v", mapping)
	}
}

func TestParseBulk_Garbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbage", raw: "garbage"},
		{name: "empty", raw: ""},
		{name: "array instead of object", raw: `["a","b"]`},
		{name: "non-string values", raw: `{"1": {"nested": true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, ok := ParseBulk(tt.raw)
			if ok {
				t.Error("expected not ok")
			}
			if len(mapping) != 0 {
				t.Errorf("expected empty mapping, got %v", mapping)
			}
			if mapping == nil {
				t.Error("expected non-nil mapping")
			}
		})
	}
}

func TestParseBulk_WrappedInText(t *testing.T) {
	raw := "Here are the descriptions:\n{\"42\": \"A sunset over mountains\"}\nEnjoy!"
	mapping, ok := ParseBulk(raw)
	if !ok {
		t.Fatal("expected ok")
	}
	if mapping["42"] != "A sunset over mountains" {
		t.Errorf("unexpected mapping: %v", mapping)
	}
}
