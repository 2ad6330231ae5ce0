// Package dnstemplate holds the catalog of named DNS record sets applied
// after a registration when the caller keeps registrar nameservers. The
// catalog is embedded at build time; record values may contain the
// "{domain}" placeholder, expanded at apply time.
package dnstemplate

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/winston-domains/winston/internal/registrar"
)

// DefaultID is the template used when the caller does not name one.
const DefaultID = "web-basic"

//go:embed templates.yaml
var rawCatalog []byte

// Template is one named record set.
type Template struct {
	ID          string             `yaml:"id"`
	Description string             `yaml:"description"`
	Records     []registrar.Record `yaml:"records"`
}

var catalog map[string]Template

func init() {
	var parsed struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(rawCatalog, &parsed); err != nil {
		panic("dnstemplate: invalid embedded catalog: " + err.Error())
	}

	catalog = make(map[string]Template, len(parsed.Templates))
	for _, t := range parsed.Templates {
		if t.ID == "" || len(t.Records) == 0 {
			panic(fmt.Sprintf("dnstemplate: template %q has no id or no records", t.ID))
		}
		if _, dup := catalog[t.ID]; dup {
			panic("dnstemplate: duplicate template id " + t.ID)
		}
		catalog[t.ID] = t
	}
	if _, ok := catalog[DefaultID]; !ok {
		panic("dnstemplate: default template " + DefaultID + " missing from catalog")
	}
}

// Lookup returns the template for id.
func Lookup(id string) (Template, bool) {
	t, ok := catalog[id]
	return t, ok
}

// IDs returns all template ids in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render expands the "{domain}" placeholder in the template's records and
// returns a fresh slice safe for the caller to hold.
func (t Template) Render(domain string) []registrar.Record {
	out := make([]registrar.Record, len(t.Records))
	for i, rec := range t.Records {
		rec.Name = strings.ReplaceAll(rec.Name, "{domain}", domain)
		rec.Value = strings.ReplaceAll(rec.Value, "{domain}", domain)
		out[i] = rec
	}
	return out
}
