// Package users loads the data-driven credential list the login scenario
// iterates over.
package users

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kuitang/swaglabs-e2e/internal/errs"
)

// Credential is one user record.
type Credential struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type document struct {
	Users []Credential `json:"users"`
}

//go:embed schema.json
var schemaJSON string

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// Load reads and validates the credential file at path.
func Load(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.DataLoad, "read credential file "+path, err)
	}
	creds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return creds, nil
}

// Parse validates data against the credential schema and decodes it. The
// returned slice is freshly allocated on every call.
func Parse(data []byte) ([]Credential, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "compile credential schema", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errs.Wrap(errs.DataLoad, "malformed credential JSON", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, errs.New(errs.DataLoad, "invalid credential file: "+strings.Join(problems, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.DataLoad, "decode credential file", err)
	}
	return doc.Users, nil
}
