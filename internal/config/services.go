package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Service roles understood by the switch orchestrator.
const (
	RolePHP = "php"
	RoleWeb = "web"
	RoleDNS = "dns"
)

// ServiceDescriptor names one managed background service: the formula it is
// installed from, the role it plays during a switch, and whether its
// lifecycle commands must run privileged.
type ServiceDescriptor struct {
	Name       string `yaml:"name"`
	Formula    string `yaml:"formula"`
	Role       string `yaml:"role"`
	Privileged bool   `yaml:"privileged"`
}

// ServicesFile is the parsed YAML structure for a service override file:
// services: [{name, formula, role, privileged}]
type ServicesFile struct {
	Services []ServiceDescriptor `yaml:"services"`
}

// DefaultServices returns the built-in service set: an unprivileged PHP
// runtime plus the privileged web and DNS helpers it fronts.
func DefaultServices() []ServiceDescriptor {
	return []ServiceDescriptor{
		{Name: "php", Formula: "php", Role: RolePHP},
		{Name: "nginx", Formula: "nginx", Role: RoleWeb, Privileged: true},
		{Name: "dnsmasq", Formula: "dnsmasq", Role: RoleDNS, Privileged: true},
	}
}

// LoadServicesFile parses a YAML service override file from the given path.
// Returns the built-in defaults if path is empty.
func LoadServicesFile(path string) ([]ServiceDescriptor, error) {
	if path == "" {
		return DefaultServices(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file: %w", err)
	}

	var sf ServicesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse services file: %w", err)
	}

	if err := validateServices(sf.Services); err != nil {
		return nil, err
	}

	return sf.Services, nil
}

// validateServices ensures all descriptors are valid and the set is coherent.
func validateServices(services []ServiceDescriptor) error {
	if len(services) == 0 {
		return fmt.Errorf("services file contains no services")
	}

	seen := make(map[string]bool)
	roles := make(map[string]bool)

	for i, s := range services {
		if s.Name == "" {
			return fmt.Errorf("service %d: name is required", i)
		}

		if s.Formula == "" {
			return fmt.Errorf("service %q: formula is required", s.Name)
		}

		switch s.Role {
		case RolePHP, RoleWeb, RoleDNS:
		default:
			return fmt.Errorf("service %q: unknown role %q", s.Name, s.Role)
		}

		if seen[s.Name] {
			return fmt.Errorf("service %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		roles[s.Role] = true
	}

	if !roles[RolePHP] {
		return fmt.Errorf("services file must declare a service with role %q", RolePHP)
	}

	return nil
}
