package config

import (
	"context"
	"testing"
)

func FuzzParser_ParseString(f *testing.F) {
	f.Add(`workspace = { node = { version = "22.11.0" } }`)
	f.Add(`workspace = { dir = "./tmp/ws", cli = { output = "heroku" } }`)
	f.Add(`workspace = { tasks = { { name = "lint", run = { "go", "vet" } } } }`)
	f.Add(`workspace = 42`)

	parser := NewParser(nil)

	f.Fuzz(func(t *testing.T, luaCode string) {
		cfg, err := parser.ParseString(context.Background(), luaCode)
		if err == nil {
			// Anything accepted must also pass validation
			if verr := cfg.Validate(); verr != nil {
				t.Errorf("ParseString accepted an invalid config: %v", verr)
			}
		}
	})
}
