package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTemplateSetDefaults(t *testing.T) {
	set, err := NewTemplateSet(nil)
	if err != nil {
		t.Fatalf("new template set: %v", err)
	}

	data := TemplateData{
		ChildName:  "Nino",
		DistanceKM: "0.85",
		Condition:  "terjatuh",
		Time:       "10/03/2025 06:30:00",
	}

	near, err := set.Render("near_school", data)
	if err != nil {
		t.Fatalf("render near_school: %v", err)
	}
	if !strings.Contains(near, "0.85 km") {
		t.Fatalf("expected distance in near_school text, got %q", near)
	}

	prompt, err := set.Render("pickup_prompt", data)
	if err != nil {
		t.Fatalf("render pickup_prompt: %v", err)
	}
	if !strings.Contains(prompt, "menjemput Nino") {
		t.Fatalf("expected child name in prompt, got %q", prompt)
	}

	fall, err := set.Render("fall", data)
	if err != nil {
		t.Fatalf("render fall: %v", err)
	}
	if !strings.Contains(fall, "terjatuh") || !strings.Contains(fall, "10/03/2025 06:30:00") {
		t.Fatalf("expected fall alert with timestamp, got %q", fall)
	}

	for _, kind := range []string{"monitoring_started", "monitoring_stopped"} {
		body, err := set.Render(kind, data)
		if err != nil {
			t.Fatalf("render %s: %v", kind, err)
		}
		if body == "" {
			t.Fatalf("expected non-empty %s text", kind)
		}
	}
}

func TestTemplateSetOverrides(t *testing.T) {
	set, err := NewTemplateSet(map[string]string{
		"fall": "Anak {{.ChildName}} jatuh, cek segera.",
	})
	if err != nil {
		t.Fatalf("new template set: %v", err)
	}

	body, err := set.Render("fall", TemplateData{ChildName: "Nino"})
	if err != nil {
		t.Fatalf("render fall: %v", err)
	}
	if body != "Anak Nino jatuh, cek segera." {
		t.Fatalf("expected override text, got %q", body)
	}
}

func TestTemplateSetRejectsUnknownKind(t *testing.T) {
	if _, err := NewTemplateSet(map[string]string{"speed_alert": "x"}); err == nil {
		t.Fatalf("expected error for unknown kind override")
	}

	set, err := NewTemplateSet(nil)
	if err != nil {
		t.Fatalf("new template set: %v", err)
	}
	if _, err := set.Render("speed_alert", TemplateData{}); err == nil {
		t.Fatalf("expected error rendering unknown kind")
	}
}

func TestTemplateSetRejectsEmptyOverride(t *testing.T) {
	if _, err := NewTemplateSet(map[string]string{"fall": "   "}); err == nil {
		t.Fatalf("expected error for blank override")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := "fall: \"Anak {{.ChildName}} jatuh!\"\npickup_prompt: \"Sudah jemput {{.ChildName}}?\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write overrides: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}
	if overrides["fall"] != "Anak {{.ChildName}} jatuh!" {
		t.Fatalf("unexpected fall override %q", overrides["fall"])
	}

	set, err := NewTemplateSet(overrides)
	if err != nil {
		t.Fatalf("template set from overrides: %v", err)
	}
	body, err := set.Render("pickup_prompt", TemplateData{ChildName: "Nino"})
	if err != nil {
		t.Fatalf("render pickup_prompt: %v", err)
	}
	if body != "Sudah jemput Nino?" {
		t.Fatalf("expected override text, got %q", body)
	}
}

func TestLoadOverridesEmptyPath(t *testing.T) {
	overrides, err := LoadOverrides("")
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	if overrides != nil {
		t.Fatalf("expected nil overrides for empty path, got %v", overrides)
	}
}
