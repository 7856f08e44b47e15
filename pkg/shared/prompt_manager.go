package shared

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// DefaultBannerTemplate is used when no banner is configured.
const DefaultBannerTemplate = "**** RETRO BASIC V{{.Version}} ****\n{{.Lines}} PROGRAM LINES STORED\n"

// ReadyPrompt is printed after every completed command.
const ReadyPrompt = "READY."

// PromptManager renders the banner shown when a session starts.
type PromptManager struct {
	bannerTemplate *template.Template
	version        string
}

// TemplateData contains all variables that can be used in the banner template
type TemplateData struct {
	Version   string
	SessionID string
	Lines     int
	Timestamp string
}

// NewPromptManager parses the banner template. An empty text selects the default.
func NewPromptManager(bannerText, version string) (*PromptManager, error) {
	if bannerText == "" {
		bannerText = DefaultBannerTemplate
	}
	tmpl, err := template.New("banner").Parse(bannerText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse banner template: %w", err)
	}
	return &PromptManager{bannerTemplate: tmpl, version: version}, nil
}

// Banner returns the rendered banner for a session.
func (pm *PromptManager) Banner(sessionID string, lines int) (string, error) {
	var buf bytes.Buffer
	data := TemplateData{
		Version:   pm.version,
		SessionID: sessionID,
		Lines:     lines,
		Timestamp: time.Now().Format("2006-01-02 15:04"),
	}
	if err := pm.bannerTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute banner template: %w", err)
	}
	return buf.String(), nil
}
