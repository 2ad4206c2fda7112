package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultKnowledge(t *testing.T) {
	k := Default()
	if k.Company.Phone != "+77776662115" {
		t.Errorf("phone = %q", k.Company.Phone)
	}
	if !strings.Contains(k.Services, "франчайзинг") {
		t.Error("services text lost its catalogue")
	}
	if len(k.ForbiddenPhrases) == 0 {
		t.Error("no forbidden phrases")
	}
}

func TestSystemPromptCarriesFactsAndLanguage(t *testing.T) {
	k := Default()

	p := k.SystemPrompt("kz")
	for _, want := range []string{k.Company.Address, k.Company.Phone, k.Company.Site, "SERVICES_TEXT START", "қазақ тілінде"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt misses %q", want)
		}
	}
	if p := k.SystemPrompt("xx"); !strings.HasSuffix(p, k.LanguageLines["ru"]) {
		t.Error("unknown language should fall back to russian")
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.yaml")
	body := `
company:
  address: "Somewhere 1"
  phone: "+70000000000"
identity: "You are a test assistant."
services: |
  - testing
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	k, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if k.Company.Address != "Somewhere 1" || !strings.Contains(k.Services, "testing") {
		t.Fatalf("unexpected %+v", k)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
	if _, err := Parse([]byte("company: {}\nservices: \"\"\n")); err == nil {
		t.Fatal("empty services should fail")
	}
}
