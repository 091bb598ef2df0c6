// Package config provides the configuration for torkeeper: defaults, the
// optional YAML file, XDG directories and detection of the hardened OS
// profile the process runs under.
package config
