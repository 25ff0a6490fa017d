// Package configs embeds the commented configuration templates written by
// `tutor config init`.
//
// Templates:
//   - project-config.example.yaml: .tutor.yaml in the project root
//     (paths, chunking, retrieval, backends)
//   - user-config.example.yaml: ~/.config/tutor/config.yaml
//     (Ollama hosts, logging)
//
// Both parse to the built-in defaults, so writing a template never changes
// behaviour until it is edited.
package configs

import _ "embed"

// ProjectConfigTemplate is written by `tutor config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is written by `tutor config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
