// Package cards renders the adaptive-card JSON the bot attaches to replies.
// Cards are text templates; a deployment can override them by dropping
// files into the cards directory, which is hot-reloaded.
package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

const (
	TemplateConnectPrompt = "connect_prompt"
	TemplateIssue         = "issue"
)

var funcs = template.FuncMap{
	// json renders a value as a JSON literal, so templates stay valid
	// whatever the issue text contains.
	"json": func(value any) (string, error) {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	},
}

// IssueCardData is the view model for the issue card.
type IssueCardData struct {
	Key      string
	Summary  string
	Status   string
	Type     string
	Priority string
	Assignee string
	URL      string
}

// Library holds the parsed card templates.
type Library struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewLibrary(dir string, logger *slog.Logger) *Library {
	library := &Library{
		dir:       dir,
		logger:    logger,
		templates: make(map[string]*template.Template),
	}
	library.Reload()
	return library
}

// Reload re-reads overrides from the cards directory on top of the built-in
// templates. Broken overrides are skipped with a log line; the built-in
// stays in effect.
func (l *Library) Reload() {
	templates := make(map[string]*template.Template, len(builtinTemplates))
	for name, source := range builtinTemplates {
		parsed, err := template.New(name).Funcs(funcs).Parse(source)
		if err != nil {
			// Built-ins are compiled in; a parse failure is a programming
			// error surfaced at startup.
			panic(fmt.Sprintf("parse builtin card template %s: %v", name, err))
		}
		templates[name] = parsed
	}

	if l.dir != "" {
		entries, err := os.ReadDir(l.dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json.tmpl") {
					continue
				}
				name := strings.TrimSuffix(entry.Name(), ".json.tmpl")
				source, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
				if err != nil {
					l.logger.Warn("card template unreadable", "name", name, "error", err)
					continue
				}
				parsed, err := template.New(name).Funcs(funcs).Parse(string(source))
				if err != nil {
					l.logger.Warn("card template broken, keeping builtin", "name", name, "error", err)
					continue
				}
				templates[name] = parsed
			}
		} else if !os.IsNotExist(err) {
			l.logger.Warn("cards directory unreadable", "dir", l.dir, "error", err)
		}
	}

	l.mu.Lock()
	l.templates = templates
	l.mu.Unlock()
}

func (l *Library) render(name string, data any) (json.RawMessage, error) {
	l.mu.RLock()
	parsed, ok := l.templates[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown card template %q", name)
	}

	var buffer bytes.Buffer
	if err := parsed.Execute(&buffer, data); err != nil {
		return nil, fmt.Errorf("render card %s: %w", name, err)
	}
	rendered := buffer.Bytes()
	if !json.Valid(rendered) {
		return nil, fmt.Errorf("card %s rendered invalid json", name)
	}
	return json.RawMessage(rendered), nil
}

// ConnectPrompt implements dialog.CardSource.
func (l *Library) ConnectPrompt() json.RawMessage {
	card, err := l.render(TemplateConnectPrompt, nil)
	if err != nil {
		l.logger.Error("connect prompt render failed", "error", err)
		return nil
	}
	return card
}

// Issue renders the issue summary card.
func (l *Library) Issue(data IssueCardData) (json.RawMessage, error) {
	return l.render(TemplateIssue, data)
}

var builtinTemplates = map[string]string{
	TemplateConnectPrompt: `{
  "type": "AdaptiveCard",
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "version": "1.3",
  "body": [
    {"type": "TextBlock", "size": "Medium", "weight": "Bolder", "text": "Connect to Jira"},
    {"type": "TextBlock", "wrap": true, "text": "I need access to your Jira account before I can do that. Type **connect** in a personal chat with me to get set up."}
  ]
}`,
	TemplateIssue: `{
  "type": "AdaptiveCard",
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "version": "1.3",
  "body": [
    {"type": "TextBlock", "size": "Medium", "weight": "Bolder", "text": {{json (printf "%s: %s" .Key .Summary)}}},
    {"type": "FactSet", "facts": [
      {"title": "Status", "value": {{json .Status}}},
      {"title": "Type", "value": {{json .Type}}},
      {"title": "Priority", "value": {{json .Priority}}},
      {"title": "Assignee", "value": {{json .Assignee}}}
    ]}
  ],
  "actions": [
    {"type": "Action.OpenUrl", "title": "Open in Jira", "url": {{json .URL}}}
  ]
}`,
}
