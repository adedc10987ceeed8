package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServicesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoadServicesFile_Valid(t *testing.T) {
	path := writeServicesFile(t, `services:
  - name: php
    formula: php
    role: php
  - name: caddy
    formula: caddy
    role: web
    privileged: true
  - name: dnsmasq
    formula: dnsmasq
    role: dns
    privileged: true
`)

	services, err := LoadServicesFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(services) != 3 {
		t.Fatalf("expected 3 services, got %d", len(services))
	}

	if services[0].Name != "php" || services[0].Privileged {
		t.Fatalf("unexpected php service: %+v", services[0])
	}

	if services[1].Formula != "caddy" || !services[1].Privileged {
		t.Fatalf("unexpected web service: %+v", services[1])
	}
}

func TestLoadServicesFile_EmptyPathReturnsDefaults(t *testing.T) {
	services, err := LoadServicesFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(services) != 3 {
		t.Fatalf("expected 3 default services, got %d", len(services))
	}
	if services[0].Role != RolePHP || services[0].Privileged {
		t.Fatalf("unexpected default php service: %+v", services[0])
	}
	if services[1].Role != RoleWeb || !services[1].Privileged {
		t.Fatalf("unexpected default web service: %+v", services[1])
	}
	if services[2].Role != RoleDNS || !services[2].Privileged {
		t.Fatalf("unexpected default dns service: %+v", services[2])
	}
}

func TestLoadServicesFile_FileNotFound(t *testing.T) {
	_, err := LoadServicesFile("/nonexistent/path/services.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadServicesFile_InvalidYAML(t *testing.T) {
	path := writeServicesFile(t, "services: [")

	_, err := LoadServicesFile(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadServicesFile_EmptyServices(t *testing.T) {
	path := writeServicesFile(t, "services: []")

	_, err := LoadServicesFile(path)
	if err == nil || err.Error() != "services file contains no services" {
		t.Fatalf("expected 'no services' error, got %v", err)
	}
}

func TestLoadServicesFile_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: `services:
  - formula: php
    role: php
`,
		},
		{
			name: "missing formula",
			yaml: `services:
  - name: php
    role: php
`,
		},
		{
			name: "unknown role",
			yaml: `services:
  - name: php
    formula: php
    role: database
`,
		},
		{
			name: "duplicate name",
			yaml: `services:
  - name: php
    formula: php
    role: php
  - name: php
    formula: php@8.1
    role: php
`,
		},
		{
			name: "no php role",
			yaml: `services:
  - name: nginx
    formula: nginx
    role: web
`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			path := writeServicesFile(t, tc.yaml)
			if _, err := LoadServicesFile(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
