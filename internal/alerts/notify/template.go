package notify

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Default alert texts. Messages are Indonesian to match the parent and
// teacher chat bots this service feeds.
const (
	DefaultNearSchoolText = `✅ Anda sudah berada dekat dengan sekolah
📏 Jarak: {{.DistanceKM}} km`

	DefaultPickupPromptText = `🚸 Apakah Anda sudah menjemput {{.ChildName}}?`

	DefaultFallText = `🚨 ALERT DARURAT 🚨

⚠️ {{.ChildName}} terdeteksi terjatuh!
🕐 Waktu: {{.Time}}
📍 Segera cek kondisi anak dan hubungi orang tua!`

	DefaultMonitoringStartedText = `🤖 Monitoring penjemputan {{.ChildName}} aktif!

📍 Bagikan Live Location Anda sampai tiba di sekolah.
🚨 Bot akan mengirim alert jika anak terjatuh.`

	DefaultMonitoringStoppedText = `🔕 Monitoring dihentikan.

🛡️ Hati-hati di jalan dan semoga sampai tujuan dengan selamat!`
)

// TemplateData provides the fields alert templates may reference.
type TemplateData struct {
	ChildName   string
	ChildID     string
	RecipientID string
	DeviceID    string
	Condition   string
	DistanceKM  string
	Time        string
}

// TemplateSet holds one parsed template per alert kind.
type TemplateSet struct {
	templates map[string]*template.Template
}

func defaultTexts() map[string]string {
	return map[string]string{
		"near_school":        DefaultNearSchoolText,
		"pickup_prompt":      DefaultPickupPromptText,
		"fall":               DefaultFallText,
		"monitoring_started": DefaultMonitoringStartedText,
		"monitoring_stopped": DefaultMonitoringStoppedText,
	}
}

// NewTemplateSet parses the default texts merged with overrides.
// Override keys must name a known alert kind.
func NewTemplateSet(overrides map[string]string) (*TemplateSet, error) {
	texts := defaultTexts()
	for kind, text := range overrides {
		if _, ok := texts[kind]; !ok {
			return nil, fmt.Errorf("alert template: unknown kind %q", kind)
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("alert template: empty text for %q", kind)
		}
		texts[kind] = text
	}

	set := &TemplateSet{templates: make(map[string]*template.Template, len(texts))}
	for kind, text := range texts {
		parsed, err := template.New(kind).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("alert template: parse %q: %w", kind, err)
		}
		set.templates[kind] = parsed
	}
	return set, nil
}

// Render applies the template for an alert kind to data.
func (s *TemplateSet) Render(kind string, data TemplateData) (string, error) {
	if s == nil || s.templates == nil {
		return "", errors.New("alert template: nil set")
	}
	tpl, ok := s.templates[kind]
	if !ok {
		return "", fmt.Errorf("alert template: unknown kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("alert template: render %q: %w", kind, err)
	}
	return buf.String(), nil
}

// LoadOverrides reads alert text overrides from a YAML file keyed by
// alert kind. An empty path yields no overrides.
func LoadOverrides(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("alert template: read overrides: %w", err)
	}
	overrides := make(map[string]string)
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("alert template: parse overrides: %w", err)
	}
	return overrides, nil
}
