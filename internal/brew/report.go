package brew

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// reportScript is written to a temporary file and executed by the active
// binary; PHP reports its own effective configuration as JSON. The round
// trip exists because ini values depend on the loaded ini chain, which only
// the interpreter itself resolves authoritatively.
const reportScript = `<?php
echo json_encode(array(
	"version" => PHP_MAJOR_VERSION . "." . PHP_MINOR_VERSION,
	"extensions" => get_loaded_extensions(),
	"memory_limit" => ini_get("memory_limit"),
	"upload_max_filesize" => ini_get("upload_max_filesize"),
	"post_max_size" => ini_get("post_max_size")
));
`

type configReport struct {
	Version           string   `json:"version"`
	Extensions        []string `json:"extensions"`
	MemoryLimit       string   `json:"memory_limit"`
	UploadMaxFilesize string   `json:"upload_max_filesize"`
	PostMaxSize       string   `json:"post_max_size"`
}

// configReport writes the report script to a temporary file, runs it with
// the linked binary, and parses the JSON it prints. The file never persists.
func (r *Registry) configReport(ctx context.Context) (configReport, error) {
	file, err := os.CreateTemp("", "phpvm-report-*.php")
	if err != nil {
		return configReport{}, fmt.Errorf("create report script: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.WriteString(reportScript); err != nil {
		file.Close()
		return configReport{}, fmt.Errorf("write report script: %w", err)
	}
	if err := file.Close(); err != nil {
		return configReport{}, fmt.Errorf("close report script: %w", err)
	}

	command := fmt.Sprintf("%s -d error_reporting=0 -d display_errors=0 %s", r.env.PhpBin, path)
	result, err := r.runner.Run(ctx, command)
	if err != nil {
		return configReport{}, err
	}
	if result.ExitCode != 0 {
		return configReport{}, fmt.Errorf("report script exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	// Startup notices may precede the payload; parse from the first brace.
	start := strings.IndexByte(result.Stdout, '{')
	if start < 0 {
		return configReport{}, fmt.Errorf("report script produced no JSON")
	}

	var report configReport
	if err := json.Unmarshal([]byte(result.Stdout[start:]), &report); err != nil {
		return configReport{}, fmt.Errorf("decode report: %w", err)
	}
	sort.Strings(report.Extensions)
	return report, nil
}
