// Package knowledge loads the fixed facts the assistant is allowed to talk
// about: company details, the service catalogue and the prompt rules.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultYAML []byte

type Company struct {
	Name    string `yaml:"name"`
	City    string `yaml:"city"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
	Hours   string `yaml:"hours"`
	Site    string `yaml:"site"`
}

type Knowledge struct {
	Company          Company           `yaml:"company"`
	Identity         string            `yaml:"identity"`
	Rules            []string          `yaml:"rules"`
	LanguageLines    map[string]string `yaml:"language_lines"`
	ForbiddenPhrases []string          `yaml:"forbidden_phrases"`
	Services         string            `yaml:"services"`
}

// Load parses the file at path, or the built-in copy when path is empty.
func Load(path string) (*Knowledge, error) {
	const op = "knowledge.Load"

	data := defaultYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		data = b
	}
	k, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return k, nil
}

// Default returns the built-in knowledge. It panics if the embedded file is broken.
func Default() *Knowledge {
	k, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return k
}

func Parse(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	if strings.TrimSpace(k.Services) == "" {
		return nil, fmt.Errorf("services section is empty")
	}
	if k.Company.Phone == "" || k.Company.Address == "" {
		return nil, fmt.Errorf("company address and phone are required")
	}
	return &k, nil
}

// SystemPrompt compiles the instructions for one reply in lang.
func (k *Knowledge) SystemPrompt(lang string) string {
	rules := make([]string, len(k.Rules))
	for i, r := range k.Rules {
		rules[i] = "- " + r
	}
	c := k.Company

	var b strings.Builder
	b.WriteString(k.Identity)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(rules, "\n"))
	fmt.Fprintf(&b, "\n\nАдрес: %s. Телефон: %s. Время работы: %s. Адрес сайта: %s.\n", c.Address, c.Phone, c.Hours, c.Site)
	b.WriteString("\n=== SERVICES_TEXT START ===\n")
	b.WriteString(strings.TrimSpace(k.Services))
	b.WriteString("\n=== SERVICES_TEXT END ===\n")
	if line, ok := k.LanguageLines[lang]; ok {
		b.WriteString(line)
	} else {
		b.WriteString(k.LanguageLines["ru"])
	}
	return b.String()
}
