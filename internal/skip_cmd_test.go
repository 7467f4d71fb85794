package internal

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSkipCmd_FlagValidation(t *testing.T) {
	path := initConfig(t, "memory")

	tests := []struct {
		name string
		args []string
	}{
		{name: "No version without --clear", args: []string{"skip"}},
		{name: "--clear with a version", args: []string{"skip", "2.0.0", "--clear"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "-s", "--config", path)...)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "already logged") {
				t.Errorf("expected sentinel error, got: %v", err)
			}
		})
	}
}

func TestSkipCmd_PersistsAcrossRuns(t *testing.T) {
	path := initConfig(t, "file")

	if _, err := run(t, "skip", "2.0.0", "-s", "--config", path); err != nil {
		t.Fatalf("skip: %v", err)
	}

	out, err := run(t, "status", "--json", "--config", path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st struct {
		State string `json:"state"`
		Skip  *struct {
			Version string `json:"version"`
		} `json:"skip"`
	}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if st.Skip == nil || st.Skip.Version != "2.0.0" {
		t.Fatalf("expected skip for 2.0.0, got %+v", st.Skip)
	}
	if st.State != "idle" {
		t.Errorf("state = %q, want idle", st.State)
	}

	if _, err := run(t, "skip", "--clear", "-s", "--config", path); err != nil {
		t.Fatalf("skip --clear: %v", err)
	}
	out, err = run(t, "status", "--json", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `"skip"`) {
		t.Errorf("skip still reported after --clear: %s", out)
	}
}
